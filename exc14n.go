// Package exc14n implements Exclusive XML Canonicalization
// (http://www.w3.org/2001/10/xml-exc-c14n#) for use with XML digital
// signatures.
//
// Signature verification depends on reproducing, byte for byte, the canonical
// serialization an issuer produced before signing. The package therefore
// exposes two execution paths: Transform.Process materializes the canonical
// bytes (for chained transforms), and Transform.ProcessAndDigest feeds them
// straight into a hash primitive without buffering (the common
// single-transform case). A ResourcePool keeps the per-verification
// allocation cost bounded on hot paths.
package exc14n

import "crypto"

// Algorithm and namespace URIs used by the exclusive canonicalization
// transform and its XML serialization.
const (
	// AlgorithmExclusiveC14N identifies exclusive canonicalization without
	// comments.
	AlgorithmExclusiveC14N = "http://www.w3.org/2001/10/xml-exc-c14n#"

	// AlgorithmExclusiveC14NWithComments identifies exclusive
	// canonicalization with comments preserved.
	AlgorithmExclusiveC14NWithComments = "http://www.w3.org/2001/10/xml-exc-c14n#WithComments"

	// NamespaceXMLDSig is the XML Signature namespace that Transform and
	// CanonicalizationMethod elements live in.
	NamespaceXMLDSig = "http://www.w3.org/2000/09/xmldsig#"

	// NamespaceExclusiveC14N is the namespace of the InclusiveNamespaces
	// child element.
	NamespaceExclusiveC14N = "http://www.w3.org/2001/10/xml-exc-c14n#"

	// NamespaceXML is the implicit binding of the xml prefix. It is never
	// re-declared in canonical output.
	NamespaceXML = "http://www.w3.org/XML/1998/namespace"

	// DefaultPrefixToken is the PrefixList keyword naming the default
	// namespace.
	DefaultPrefixToken = "#default"
)

// DigestAlgorithms maps DigestMethod Algorithm URIs to hash primitives. The
// ResourcePool resolves digest identifiers against this map when lending
// hashes and hash sinks.
//
// Custom algorithms can be added to the map before any pool is used.
var DigestAlgorithms map[string]crypto.Hash

func init() {
	DigestAlgorithms = map[string]crypto.Hash{
		"http://www.w3.org/2001/04/xmldsig-more#md5":    crypto.MD5,
		"http://www.w3.org/2000/09/xmldsig#sha1":        crypto.SHA1,
		"http://www.w3.org/2001/04/xmldsig-more#sha224": crypto.SHA224,
		"http://www.w3.org/2001/04/xmlenc#sha256":       crypto.SHA256,
		"http://www.w3.org/2001/04/xmldsig-more#sha384": crypto.SHA384,
		"http://www.w3.org/2001/04/xmlenc#sha512":       crypto.SHA512,
		"http://www.w3.org/2001/04/xmlenc#ripemd160":    crypto.RIPEMD160,
	}
}
