package delegate

import (
	"bytes"
	"runtime"
	"strings"
	"testing"
	"time"

	"echonet/util"
)

func TestSum_Process(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single number", "42", "42\n42"},
		{"sorted and summed", "3 1 2", "1 2 3\n6"},
		{"negatives", "-5 10 -1", "-5 -1 10\n4"},
		{"mixed with words", "abc 7 def 3", "3 7\n10"},
		{"partial number tokens skipped", "12abc 5 -x3", "5\n5"},
		{"tabs and newlines", "4\t5\n6", "4 5 6\n15"},
		{"no numbers echoes", "hello world", "hello world"},
		{"lone minus echoes", "- -", "- -"},
		{"duplicates kept", "2 2 1", "1 2 2\n5"},
		{"int64 bounds", "9223372036854775807 -9223372036854775808", "-9223372036854775808 9223372036854775807\n-1"},
		{"out of range ignored", "99999999999999999999 1", "1\n1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(Sum{}.Process([]byte(tt.in)))
			if got != tt.want {
				t.Errorf("Process(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestEcho_Process(t *testing.T) {
	in := []byte("hello")
	if got := (Echo{}).Process(in); !bytes.Equal(got, in) {
		t.Errorf("got %q, want %q", got, in)
	}
}

func TestFunc_Process(t *testing.T) {
	upper := Func(func(msg []byte) []byte { return bytes.ToUpper(msg) })
	if got := string(upper.Process([]byte("abc"))); got != "ABC" {
		t.Errorf("got %q, want ABC", got)
	}
}

func TestByName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"sum", false},
		{"echo", false},
		{"reverse", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ByName(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ByName(%q) err = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if !tt.wantErr && d == nil {
				t.Error("expected a delegate")
			}
		})
	}
}

func TestSafe_RecoversPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := util.NewLogger(0)
	logger.SetOutput(&buf)

	boom := Func(func([]byte) []byte { panic("boom") })
	got := Safe(boom, logger).Process([]byte("x"))

	if len(got) != 0 {
		t.Errorf("expected empty reply, got %q", got)
	}
	if !strings.Contains(buf.String(), "delegate panicked: boom") {
		t.Errorf("panic not logged: %q", buf.String())
	}
}

func TestSafe_PassesThrough(t *testing.T) {
	got := Safe(Echo{}, nil).Process([]byte("ok"))
	if string(got) != "ok" {
		t.Errorf("got %q, want ok", got)
	}
}

func BenchmarkSum_Process(b *testing.B) {
	msg := []byte(strings.Repeat("17 abc -4 ", 1000))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		Sum{}.Process(msg)
	}
}

func TestExec_Process(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
	tests := []struct {
		name    string
		command string
		in      string
		want    string
	}{
		{"cat", "cat", "hello", "hello"},
		{"transform", "tr a-z A-Z", "hello", "HELLO"},
		{"failure yields nothing", "exit 3", "hello", ""},
		{"ignores stdin", "printf ok", "whatever", "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &Exec{Command: tt.command, Timeout: 5 * time.Second}
			if got := string(d.Process([]byte(tt.in))); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExec_Timeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses /bin/sh")
	}
	var buf bytes.Buffer
	logger := util.NewLogger(1)
	logger.SetOutput(&buf)

	d := &Exec{Command: "sleep 5", Timeout: 100 * time.Millisecond, Logger: logger}
	start := time.Now()
	if got := d.Process([]byte("x")); len(got) != 0 {
		t.Errorf("expected empty reply, got %q", got)
	}
	if time.Since(start) > 3*time.Second {
		t.Error("command was not cut off at the timeout")
	}
	if !strings.Contains(buf.String(), "[WRN]") {
		t.Errorf("failure not logged: %q", buf.String())
	}
}
