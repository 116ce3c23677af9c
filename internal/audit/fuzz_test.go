package audit

import (
	"os"
	"path/filepath"
	"testing"
)

// FuzzVerify feeds arbitrary bytes through chain verification. Verify
// must classify any input as valid or invalid without panicking.
func FuzzVerify(f *testing.F) {
	f.Add([]byte(""))
	f.Add([]byte("not json\n"))
	f.Add([]byte(`{"id":"evt_1","prev_hash":"sha256:0000000000000000000000000000000000000000000000000000000000000000"}` + "\n"))
	f.Add([]byte(`{"prev_hash":"sha256:wrong"}` + "\n" + `{"prev_hash":"sha256:alsowrong"}` + "\n"))
	f.Add([]byte("{}\n{}\n{}\n"))

	f.Fuzz(func(t *testing.T, data []byte) {
		path := filepath.Join(t.TempDir(), "fuzz.log")
		if err := os.WriteFile(path, data, 0o600); err != nil {
			t.Skip()
		}
		result := Verify(path)
		if result.Valid && result.Error != "" {
			t.Errorf("valid result carries error %q", result.Error)
		}
		if !result.Valid && result.Error == "" {
			t.Error("invalid result missing error description")
		}
	})
}
