package engine

import (
	"testing"
	"time"
)

func TestTranslateTimePattern(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		want     string
		wantZone bool
		wantErr  bool
	}{
		{
			name:    "date time seconds",
			pattern: "yyyy-MM-dd HH:mm:ss",
			want:    "2006-01-02 15:04:05",
		},
		{
			name:    "iso with T literal",
			pattern: "yyyy-MM-ddTHH:mm:ss",
			want:    "2006-01-02T15:04:05",
		},
		{
			name:    "fractional seconds",
			pattern: "HH:mm:ss.fff",
			want:    "15:04:05.000",
		},
		{
			name:    "optional fractional seconds",
			pattern: "HH:mm:ss.FFF",
			want:    "15:04:05.999",
		},
		{
			name:    "two digit year and short tokens",
			pattern: "yy/M/d H:m:s",
			want:    "06/1/2 15:4:5",
		},
		{
			name:     "full zone offset",
			pattern:  "yyyy-MM-dd HH:mm:sszzz",
			want:     "2006-01-02 15:04:05-07:00",
			wantZone: true,
		},
		{
			name:     "utc designator",
			pattern:  "yyyy-MM-ddTHH:mm:ssK",
			want:     "2006-01-02T15:04:05Z07:00",
			wantZone: true,
		},
		{
			name:    "twelve hour clock",
			pattern: "hh:mm tt",
			want:    "03:04 PM",
		},
		{
			name:    "quoted literal",
			pattern: "yyyy'T'MM",
			want:    "2006T01",
		},
		{
			name:    "unsupported token",
			pattern: "yyyy-MM-dd QQ",
			wantErr: true,
		},
		{
			name:    "unterminated literal",
			pattern: "yyyy'oops",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, hasZone, err := translateTimePattern(tt.pattern)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("got layout %q, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("layout: got %q, want %q", got, tt.want)
			}
			if hasZone != tt.wantZone {
				t.Errorf("hasZone: got %v, want %v", hasZone, tt.wantZone)
			}
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name      string
		settings  FileSourceSettings
		cell      string
		want      time.Time
		wantError bool
	}{
		{
			name: "zone-less pattern read as utc by default",
			settings: FileSourceSettings{
				SamplePeriod: time.Second,
				DateTimeMode: &DateTimeModeOptions{Column: 1, Pattern: "yyyy-MM-dd HH:mm:ss"},
			},
			cell: "2020-01-01 00:00:05",
			want: time.Date(2020, 1, 1, 0, 0, 5, 0, time.UTC),
		},
		{
			name: "utc offset shifts zone-less timestamps",
			settings: FileSourceSettings{
				SamplePeriod: time.Second,
				UTCOffset:    2 * time.Hour,
				DateTimeMode: &DateTimeModeOptions{Column: 1, Pattern: "yyyy-MM-dd HH:mm:ss"},
			},
			cell: "2020-01-01 02:00:00",
			want: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "timestamp offset subtracted before alignment",
			settings: FileSourceSettings{
				SamplePeriod: time.Second,
				DateTimeMode: &DateTimeModeOptions{
					Column:  1,
					Pattern: "yyyy-MM-dd HH:mm:ss",
					Offset:  time.Hour,
				},
			},
			cell: "2020-01-01 01:00:00",
			want: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "explicit zone wins over utc offset",
			settings: FileSourceSettings{
				SamplePeriod: time.Second,
				UTCOffset:    5 * time.Hour,
				DateTimeMode: &DateTimeModeOptions{Column: 1, Pattern: "yyyy-MM-dd HH:mm:sszzz"},
			},
			cell: "2020-01-01 01:00:00+01:00",
			want: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "quoted timestamp cell accepted",
			settings: FileSourceSettings{
				SamplePeriod: time.Second,
				DateTimeMode: &DateTimeModeOptions{Column: 1, Pattern: "yyyy-MM-dd HH:mm:ss"},
			},
			cell: `"2020-01-01 00:00:05"`,
			want: time.Date(2020, 1, 1, 0, 0, 5, 0, time.UTC),
		},
		{
			name: "unparsable timestamp",
			settings: FileSourceSettings{
				SamplePeriod: time.Second,
				DateTimeMode: &DateTimeModeOptions{Column: 1, Pattern: "yyyy-MM-dd HH:mm:ss"},
			},
			cell:      "not a time",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := mustCompile(t, &tt.settings)
			got, err := c.parseTimestamp(tt.cell)
			if tt.wantError {
				if err == nil {
					t.Fatalf("got %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSlotIndex(t *testing.T) {
	begin := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		at     time.Time
		period time.Duration
		want   int
	}{
		{name: "at origin", at: begin, period: time.Second, want: 0},
		{name: "five seconds in", at: begin.Add(5 * time.Second), period: time.Second, want: 5},
		{name: "sub-period truncates down", at: begin.Add(5*time.Second + 300*time.Millisecond), period: time.Second, want: 5},
		{name: "before origin floors", at: begin.Add(-300 * time.Millisecond), period: time.Second, want: -1},
		{name: "exactly one period before origin", at: begin.Add(-time.Second), period: time.Second, want: -1},
		{name: "minute cadence", at: begin.Add(90 * time.Second), period: time.Minute, want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := slotIndex(tt.at, begin, tt.period); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}
