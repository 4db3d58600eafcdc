package exc14n

import (
	"crypto/sha256"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/beevik/etree"
	. "github.com/smartystreets/goconvey/convey"
)

// signedInfoDigestB64 is the canonical SHA-256 of the SignedInfo element in
// testdata/signedinfo.xml, computed once from the reference canonical form
// (the element with the inherited xmlns declaration rendered, children and
// whitespace byte-identical to the fixture).
const signedInfoDigestB64 = "SPGLmhIM19pViY+LRy0i4vd4YexNk7fAsJnEZKxLYvc="

func loadSignedInfoDoc(t *testing.T) *etree.Document {
	raw, err := os.ReadFile(filepath.Join("testdata", "signedinfo.xml"))
	if err != nil {
		t.Fatal(err)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestSignedInfoDigestScenario(t *testing.T) {
	Convey("Given a SignedInfo referencing a single exclusive canonicalization", t, func() {
		pool := NewResourcePool()
		doc := loadSignedInfoDoc(t)
		signedInfo := doc.FindElement("//SignedInfo")
		So(signedInfo, ShouldNotBeNil)

		transform := NewCanonicalizationMethod(false)
		So(transform.ReadFrom(signedInfo.SelectElement("CanonicalizationMethod"), false), ShouldBeNil)
		So(transform.Algorithm(), ShouldEqual, AlgorithmExclusiveC14N)

		digest, err := transform.ProcessAndDigest(NewElementReader(signedInfo), pool, sha256URI)
		So(err, ShouldBeNil)

		Convey("Then the digest reproduces the known-good reference digest", func() {
			So(base64.StdEncoding.EncodeToString(digest), ShouldEqual, signedInfoDigestB64)
		})

		Convey("Then the fused digest equals the digest of the materialized bytes", func() {
			canonical, err := transform.Process(NewElementReader(signedInfo), pool)
			So(err, ShouldBeNil)
			want := sha256.Sum256(canonical)
			So(digest, ShouldResemble, want[:])
		})

		Convey("When bytes outside the canonicalized subtree change", func() {
			other := loadSignedInfoDoc(t)
			other.FindElement("//SignatureValue").SetText("  \n  tampered-outside  ")
			otherDigest, err := transform.ProcessAndDigest(
				NewElementReader(other.FindElement("//SignedInfo")), pool, sha256URI)
			So(err, ShouldBeNil)
			Convey("Then the digest is unchanged", func() {
				So(otherDigest, ShouldResemble, digest)
			})
		})

		Convey("When an element inside the canonicalized subtree is renamed", func() {
			other := loadSignedInfoDoc(t)
			other.FindElement("//SignedInfo/Reference").Tag = "Tampered"
			otherDigest, err := transform.ProcessAndDigest(
				NewElementReader(other.FindElement("//SignedInfo")), pool, sha256URI)
			So(err, ShouldBeNil)
			Convey("Then the digest changes", func() {
				So(otherDigest, ShouldNotResemble, digest)
			})
		})
	})
}
