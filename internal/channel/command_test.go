package channel

import "testing"

func TestParseCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text  string
		cmd   Command
		args  string
		ok    bool
		known bool
	}{
		{"/start", CommandStart, "", true, true},
		{"  /STOP  ", CommandStop, "", true, true},
		{"/status@majlis_bot", CommandStatus, "", true, true},
		{"/knowledge extra words", CommandKnowledge, "extra words", true, true},
		{"/clear@bot now", CommandClear, "now", true, true},
		{"/unknown", Command("unknown"), "", true, false},
		{"hello /start", "", "", false, false},
		{"/", "", "", false, false},
		{"/@bot", "", "", false, false},
		{"مرحباً", "", "", false, false},
	}
	for _, tt := range tests {
		cmd, args, ok := ParseCommand(tt.text)
		if cmd != tt.cmd || args != tt.args || ok != tt.ok {
			t.Errorf("ParseCommand(%q) = %q, %q, %v; want %q, %q, %v", tt.text, cmd, args, ok, tt.cmd, tt.args, tt.ok)
		}
		if cmd.Known() != tt.known {
			t.Errorf("ParseCommand(%q).Known() = %v, want %v", tt.text, cmd.Known(), tt.known)
		}
	}
}
