package cli

import (
	"bytes"
	"strings"
	"testing"

	"pricewatch/internal/version"
)

func TestVersionCommandPrintsBuildInfo(t *testing.T) {
	var out bytes.Buffer
	versionCmd.SetOut(&out)
	defer versionCmd.SetOut(nil)

	versionCmd.Run(versionCmd, nil)

	got := strings.TrimSpace(out.String())
	if got != version.String() {
		t.Fatalf("version output = %q, want %q", got, version.String())
	}
}
