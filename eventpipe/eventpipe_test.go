package eventpipe

import "testing"

func TestParseLine(t *testing.T) {
	cases := []struct {
		line    string
		want    Event
		wantErr bool
	}{
		{line: "scan A100", want: Event{Type: EventScan, Card: "A100"}},
		{line: "tap A100", want: Event{Type: EventScan, Card: "A100"}},
		{line: "SCAN A100", want: Event{Type: EventScan, Card: "A100"}},
		{line: "attach COM6 CP2102 USB to UART Bridge", want: Event{Type: EventAttach, Port: "COM6", Caption: "CP2102 USB to UART Bridge"}},
		{line: "attach COM5", want: Event{Type: EventAttach, Port: "COM5"}},
		{line: "detach COM6", want: Event{Type: EventDetach, Port: "COM6"}},
		{line: "connect COM3", want: Event{Type: EventConnect, Port: "COM3"}},
		{line: "disconnect", want: Event{Type: EventDisconnect}},
		{line: "register A100 Alice Engineering", want: Event{Type: EventRegister, Card: "A100", Name: "Alice", Department: "Engineering"}},
		{line: "register A100 Alice", want: Event{Type: EventRegister, Card: "A100", Name: "Alice"}},
		{line: "scan", wantErr: true},
		{line: "attach", wantErr: true},
		{line: "register A100", wantErr: true},
		{line: "bogus", wantErr: true},
	}

	for _, tt := range cases {
		got, err := parseLine(tt.line)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parseLine(%q) succeeded, want error", tt.line)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseLine(%q): %v", tt.line, err)
		}
		if got != tt.want {
			t.Fatalf("parseLine(%q) = %+v, want %+v", tt.line, got, tt.want)
		}
	}
}
