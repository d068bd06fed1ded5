package updater

import "testing"

func TestParseSemVerBasic(t *testing.T) {
	v, err := ParseSemVer("1.2.3")
	if err != nil {
		t.Fatalf("ParseSemVer: %v", err)
	}
	if v.Major != 1 || v.Minor != 2 || v.Patch != 3 {
		t.Fatalf("got %+v", v)
	}
	if v.IsPrerelease() {
		t.Fatal("expected release, not prerelease")
	}
}

func TestParseSemVerVPrefix(t *testing.T) {
	v, err := ParseSemVer("v0.1.0")
	if err != nil {
		t.Fatalf("ParseSemVer: %v", err)
	}
	if v.Major != 0 || v.Minor != 1 {
		t.Fatalf("got %+v", v)
	}
}

func TestParseSemVerPrerelease(t *testing.T) {
	v, err := ParseSemVer("1.0.0-beta.1")
	if err != nil {
		t.Fatalf("ParseSemVer: %v", err)
	}
	if !v.IsPrerelease() {
		t.Fatal("expected prerelease")
	}
	if v.Prerelease != "beta.1" {
		t.Fatalf("got prerelease %q", v.Prerelease)
	}
}

func TestCompareVersions(t *testing.T) {
	v1, _ := ParseSemVer("1.0.0")
	v2, _ := ParseSemVer("1.0.1")
	if !v2.IsNewerThan(v1) {
		t.Fatal("1.0.1 should be newer than 1.0.0")
	}

	v3, _ := ParseSemVer("2.0.0")
	if !v3.IsNewerThan(v2) {
		t.Fatal("2.0.0 should be newer than 1.0.1")
	}
}

func TestPrereleaseLessThanRelease(t *testing.T) {
	pre, _ := ParseSemVer("1.0.0-beta.1")
	rel, _ := ParseSemVer("1.0.0")
	if !rel.IsNewerThan(pre) {
		t.Fatal("release should outrank prerelease of same triple")
	}
}

func TestParseSemVerInvalid(t *testing.T) {
	if _, err := ParseSemVer("not-a-version"); err == nil {
		t.Fatal("expected error for invalid version string")
	}
}
