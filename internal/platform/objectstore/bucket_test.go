package objectstore

import (
	"regexp"
	"strings"
	"testing"
)

func TestPartNaming_LexicographicOrderMatchesPartOrder(t *testing.T) {
	s := &gcsStore{bucket: "b"}
	key := "t1/a1/trk_0011223344556677.jpg"
	token := "0123456789abcdef0123456789abcdef"

	prefix := s.partPrefix(key, token)
	if prefix != key+".parts/"+token {
		t.Fatalf("unexpected part prefix %q", prefix)
	}

	prev := ""
	for _, n := range []int{1, 2, 9, 10, 99, 100, 12345} {
		name := s.partObject(key, token, n)
		if !strings.HasPrefix(name, prefix+"/") {
			t.Fatalf("part object %q must live under the prefix", name)
		}
		if prev != "" && name <= prev {
			t.Fatalf("zero-padded names must sort with part numbers: %q then %q", prev, name)
		}
		prev = name
	}

	marker := s.markerObject(key, token)
	if !strings.HasPrefix(marker, prefix+"/") {
		t.Fatalf("marker %q must live under the prefix", marker)
	}
}

func TestNewUploadToken_HexNoDashes(t *testing.T) {
	re := regexp.MustCompile(`^[0-9a-f]{32}$`)
	for i := 0; i < 20; i++ {
		if tok := newUploadToken(); !re.MatchString(tok) {
			t.Fatalf("bad upload token %q", tok)
		}
	}
}

func TestEmulatorUploadURL_Shape(t *testing.T) {
	s := &gcsStore{bucket: "raw-media", mode: StorageModeGCSEmulator, emulatorHost: "http://localhost:4443"}
	u := s.emulatorUploadURL("t1/a1/trk_1.jpg")
	if !strings.HasPrefix(u, "http://localhost:4443/upload/storage/v1/b/raw-media/o?") {
		t.Fatalf("unexpected emulator url %q", u)
	}
	if !strings.Contains(u, "uploadType=media") {
		t.Fatalf("emulator url must request a media upload: %q", u)
	}
}
