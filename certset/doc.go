// Package certset assembles the additional certificates attached to a
// code-signing chain.
//
// Candidate files are classified from their bytes, never from their names:
//
//   - DER or PEM encoded X.509 certificates (Cert)
//   - Authenticode signatures, either embedded in a signed PE image or as a
//     raw PKCS#7 SignedData over SpcIndirectDataContent (Authenticode)
//   - Windows serialized certificate store elements (SerializedCert)
//
// Everything else, PKCS#12/PFX bundles and private keys in particular, is
// rejected. A Builder validates a batch of paths in order and stops at the
// first rejected file, returning what it collected so far together with an
// *InvalidCertificateError naming that file.
package certset
