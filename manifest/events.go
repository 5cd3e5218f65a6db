package manifest

import (
	"encoding/json"
	"fmt"
)

// Listener is a callback function that receives events during the build process.
type Listener func(fmt.Stringer)

func jsonString(v interface{}) string {
	b, _ := json.Marshal(map[string]interface{}{
		fmt.Sprintf("%T", v): v,
	})
	return string(b)
}

// EventManifestLoadSuccess is emitted when the manifest has been parsed.
type EventManifestLoadSuccess struct {
	Path      string `json:"path,omitempty"`
	Artifacts int    `json:"artifacts"`
}

func (e EventManifestLoadSuccess) String() string { return jsonString(e) }

// EventCertificatesValidated is emitted once every listed certificate passed.
type EventCertificatesValidated struct {
	Thumbprints []string `json:"thumbprints"`
}

func (e EventCertificatesValidated) String() string { return jsonString(e) }

// EventArchiveCreated is emitted when an archive has been written.
type EventArchiveCreated struct {
	Source  string `json:"source,omitempty"`
	Path    string `json:"path,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Entries int    `json:"entries"`
	Size    int64  `json:"size"`
	Digest  string `json:"digest,omitempty"`
}

func (e EventArchiveCreated) String() string { return jsonString(e) }

// EventFileOperation is emitted when a file of the output directory is written.
type EventFileOperation struct {
	Path      string `json:"path,omitempty"`
	OldDigest string `json:"old_digest,omitempty"`
	NewDigest string `json:"new_digest,omitempty"`
	Created   bool   `json:"created,omitempty"`
	Updated   bool   `json:"updated,omitempty"`
}

func (e EventFileOperation) String() string { return jsonString(e) }

// EventBuildSuccess is emitted when every artifact of the manifest is built.
type EventBuildSuccess struct {
	Output    string `json:"output,omitempty"`
	Artifacts int    `json:"artifacts"`
}

func (e EventBuildSuccess) String() string { return jsonString(e) }
