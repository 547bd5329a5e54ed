package appointment

import (
	"reflect"
	"testing"
)

func TestGenerateSlots(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		end      string
		duration int
		buffer   int
		want     []string
	}{
		{
			name:  "hour window without buffer",
			start: "10:00", end: "11:00", duration: 30, buffer: 0,
			want: []string{"10:00", "10:30"},
		},
		{
			name:  "buffer shifts the cursor",
			start: "09:00", end: "11:00", duration: 30, buffer: 15,
			want: []string{"09:00", "09:45", "10:30"},
		},
		{
			name:  "last slot must fit entirely",
			start: "10:00", end: "10:45", duration: 30, buffer: 0,
			want: []string{"10:00"},
		},
		{
			name:  "full working day",
			start: "10:00", end: "18:00", duration: 30, buffer: 0,
			want: []string{
				"10:00", "10:30", "11:00", "11:30", "12:00", "12:30",
				"13:00", "13:30", "14:00", "14:30", "15:00", "15:30",
				"16:00", "16:30", "17:00", "17:30",
			},
		},
		{
			name:  "degenerate window",
			start: "18:00", end: "10:00", duration: 30, buffer: 0,
			want: nil,
		},
		{
			name:  "zero duration",
			start: "10:00", end: "18:00", duration: 0, buffer: 0,
			want: nil,
		},
		{
			name:  "negative buffer",
			start: "10:00", end: "18:00", duration: 30, buffer: -5,
			want: nil,
		},
		{
			name:  "malformed start",
			start: "25:99", end: "18:00", duration: 30, buffer: 0,
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateSlots(tt.start, tt.end, tt.duration, tt.buffer)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("GenerateSlots(%s, %s, %d, %d) = %v, want %v",
					tt.start, tt.end, tt.duration, tt.buffer, got, tt.want)
			}
		})
	}
}

func TestParseHHMM(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"10:30", 630, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"10:60", 0, true},
		{"bogus", 0, true},
	}
	for _, tt := range tests {
		got, err := parseHHMM(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseHHMM(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseHHMM(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFormatHHMM(t *testing.T) {
	if got := formatHHMM(630); got != "10:30" {
		t.Errorf("formatHHMM(630) = %q, want 10:30", got)
	}
	if got := formatHHMM(0); got != "00:00" {
		t.Errorf("formatHHMM(0) = %q, want 00:00", got)
	}
}
