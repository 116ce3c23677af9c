package audit

import (
	"fmt"
	"path/filepath"
	"testing"
)

func BenchmarkRecord(b *testing.B) {
	path := filepath.Join(b.TempDir(), "bench.log")
	l := New(path, Options{})

	entry := testEntry("allowed")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := l.Record(entry); err != nil {
			b.Fatal(err)
		}
	}
}

func benchVerify(b *testing.B, lines int) {
	path := filepath.Join(b.TempDir(), "bench.log")
	l := New(path, Options{MaxSizeMB: 100})

	entry := testEntry("allowed")
	for i := 0; i < lines; i++ {
		entry.Reason = fmt.Sprintf("reason %d", i)
		if err := l.Record(entry); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		result := Verify(path)
		if !result.Valid {
			b.Fatalf("chain invalid at line %d: %s", result.ErrorLine, result.Error)
		}
	}
}

func BenchmarkVerify1000(b *testing.B)  { benchVerify(b, 1000) }
func BenchmarkVerify10000(b *testing.B) { benchVerify(b, 10000) }
