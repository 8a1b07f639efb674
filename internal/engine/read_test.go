package engine

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"
)

func newTestEngine() *Engine {
	return NewEngine(nil, nil)
}

func makeRequests(names []string, slots int) []ReadRequest {
	requests := make([]ReadRequest, len(names))
	for i, name := range names {
		requests[i] = ReadRequest{
			OriginalName: name,
			Values:       make([]float64, slots),
			Status:       make([]byte, slots),
		}
	}
	return requests
}

func TestReadSequential(t *testing.T) {
	settings := &FileSourceSettings{Separator: ';'}
	file := "Foo;Anything\n2e9;5\n"

	requests := makeRequests([]string{"Foo", "Anything"}, 1)
	info := ReadInfo{
		Reader:    strings.NewReader(file),
		FileBlock: 1,
		Settings:  settings,
	}

	if err := newTestEngine().Read(context.Background(), info, requests); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if requests[0].Values[0] != 2e9 {
		t.Errorf("Foo value: got %v, want 2e9", requests[0].Values[0])
	}
	if requests[1].Values[0] != 5 {
		t.Errorf("Anything value: got %v, want 5", requests[1].Values[0])
	}
	for i, req := range requests {
		if req.Status[0] != statusValid {
			t.Errorf("request %d status: got %d, want %d", i, req.Status[0], statusValid)
		}
	}
}

func TestReadSequentialStatusInvariant(t *testing.T) {
	tests := []struct {
		name      string
		dataRows  int
		offset    int
		block     int
		wantValid int
	}{
		{name: "complete file", dataRows: 10, offset: 0, block: 10, wantValid: 10},
		{name: "complete file with offset", dataRows: 10, offset: 3, block: 7, wantValid: 7},
		{name: "short by two rows", dataRows: 8, offset: 0, block: 10, wantValid: 8},
		{name: "offset eats whole file", dataRows: 3, offset: 5, block: 4, wantValid: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sb strings.Builder
			sb.WriteString("val\n")
			for i := 0; i < tt.dataRows; i++ {
				sb.WriteString("1.5\n")
			}

			requests := makeRequests([]string{"val"}, tt.block)
			info := ReadInfo{
				Reader:     strings.NewReader(sb.String()),
				FileOffset: tt.offset,
				FileBlock:  tt.block,
				Settings:   &FileSourceSettings{},
			}

			if err := newTestEngine().Read(context.Background(), info, requests); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			for slot := 0; slot < tt.block; slot++ {
				want := byte(0)
				if slot < tt.wantValid {
					want = statusValid
				}
				if requests[0].Status[slot] != want {
					t.Errorf("slot %d status: got %d, want %d", slot, requests[0].Status[slot], want)
				}
			}
		})
	}
}

// NaN cells in sequential mode are present-but-NaN: the status byte is still
// set once the block is read.
func TestReadSequentialNaNKeepsStatus(t *testing.T) {
	file := "val\n1.0\nn/a\n3.0\n"
	requests := makeRequests([]string{"val"}, 3)
	info := ReadInfo{
		Reader:    strings.NewReader(file),
		FileBlock: 3,
		Settings:  &FileSourceSettings{InvalidValue: "n/a"},
	}

	if err := newTestEngine().Read(context.Background(), info, requests); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !math.IsNaN(requests[0].Values[1]) {
		t.Errorf("slot 1: got %v, want NaN", requests[0].Values[1])
	}
	for slot := 0; slot < 3; slot++ {
		if requests[0].Status[slot] != statusValid {
			t.Errorf("slot %d status: got %d, want %d", slot, requests[0].Status[slot], statusValid)
		}
	}
}

func TestReadSequentialMalformedLineAborts(t *testing.T) {
	// Third data row lacks the second column.
	file := "a,b\n1,2\n3,4\n5\n7,8\n"
	requests := makeRequests([]string{"b"}, 4)
	info := ReadInfo{
		Reader:    strings.NewReader(file),
		FileBlock: 4,
		Settings:  &FileSourceSettings{},
	}

	if err := newTestEngine().Read(context.Background(), info, requests); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantStatus := []byte{statusValid, statusValid, 0, 0}
	for slot, want := range wantStatus {
		if requests[0].Status[slot] != want {
			t.Errorf("slot %d status: got %d, want %d", slot, requests[0].Status[slot], want)
		}
	}
}

func TestReadSequentialUnknownColumn(t *testing.T) {
	file := "a,b\n1,2\n"
	requests := makeRequests([]string{"missing"}, 1)
	info := ReadInfo{
		Reader:    strings.NewReader(file),
		FileBlock: 1,
		Settings:  &FileSourceSettings{},
	}

	if err := newTestEngine().Read(context.Background(), info, requests); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requests[0].Status[0] != 0 {
		t.Errorf("status for unresolved column: got %d, want 0", requests[0].Status[0])
	}
}

func TestReadSequentialExternalIndexLookup(t *testing.T) {
	engine := NewEngine(nil, func(_ ReadInfo, requests []ReadRequest) []int {
		indices := make([]int, len(requests))
		for i, req := range requests {
			switch req.OriginalName {
			case "second":
				indices[i] = 1
			default:
				indices[i] = -1
			}
		}
		return indices
	})

	file := "10,20\n30,40\n"
	requests := makeRequests([]string{"second", "nowhere"}, 2)
	info := ReadInfo{
		Reader:    strings.NewReader(file),
		FileBlock: 2,
		Settings:  &FileSourceSettings{HeaderRow: NoHeaderRow},
	}

	if err := engine.Read(context.Background(), info, requests); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if requests[0].Values[0] != 20 || requests[0].Values[1] != 40 {
		t.Errorf("values: got %v, want [20 40]", requests[0].Values)
	}
	if requests[1].Status[0] != 0 || requests[1].Status[1] != 0 {
		t.Error("unresolved request should keep zero status")
	}
}

func TestReadTimestamped(t *testing.T) {
	settings := &FileSourceSettings{
		Separator:    ';',
		SamplePeriod: time.Second,
		DateTimeMode: &DateTimeModeOptions{Column: 1, Pattern: "yyyy-MM-dd HH:mm:ss"},
	}
	file := "time;val\n2020-01-01 00:00:05;7\n"

	requests := makeRequests([]string{"val"}, 10)
	info := ReadInfo{
		Reader:    strings.NewReader(file),
		FileBlock: 10,
		FileBegin: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Settings:  settings,
	}

	if err := newTestEngine().Read(context.Background(), info, requests); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for slot := 0; slot < 10; slot++ {
		if slot == 5 {
			if requests[0].Values[5] != 7 {
				t.Errorf("slot 5: got %v, want 7", requests[0].Values[5])
			}
			if requests[0].Status[5] != statusValid {
				t.Errorf("slot 5 status: got %d, want %d", requests[0].Status[5], statusValid)
			}
			continue
		}
		if requests[0].Status[slot] != 0 {
			t.Errorf("slot %d status: got %d, want 0", slot, requests[0].Status[slot])
		}
	}
}

// Out-of-range rows must not touch any buffer.
func TestReadTimestampedOutOfRange(t *testing.T) {
	settings := &FileSourceSettings{
		Separator:    ';',
		SamplePeriod: time.Second,
		DateTimeMode: &DateTimeModeOptions{Column: 1, Pattern: "yyyy-MM-dd HH:mm:ss"},
	}
	file := "time;val\n" +
		"2019-12-31 23:59:59;111\n" +
		"2020-01-01 00:00:02;2\n" +
		"2020-01-01 00:00:30;222\n"

	requests := makeRequests([]string{"val"}, 5)
	info := ReadInfo{
		Reader:    strings.NewReader(file),
		FileBlock: 5,
		FileBegin: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Settings:  settings,
	}

	if err := newTestEngine().Read(context.Background(), info, requests); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for slot := 0; slot < 5; slot++ {
		wantValue, wantStatus := 0.0, byte(0)
		if slot == 2 {
			wantValue, wantStatus = 2, statusValid
		}
		if requests[0].Values[slot] != wantValue {
			t.Errorf("slot %d value: got %v, want %v", slot, requests[0].Values[slot], wantValue)
		}
		if requests[0].Status[slot] != wantStatus {
			t.Errorf("slot %d status: got %d, want %d", slot, requests[0].Status[slot], wantStatus)
		}
	}
}

// Timestamp mode tracks validity per sample: a NaN decode writes the value
// but leaves the status byte unset.
func TestReadTimestampedNaNLeavesStatusUnset(t *testing.T) {
	settings := &FileSourceSettings{
		Separator:    ';',
		SamplePeriod: time.Second,
		InvalidValue: "n/a",
		DateTimeMode: &DateTimeModeOptions{Column: 1, Pattern: "yyyy-MM-dd HH:mm:ss"},
	}
	file := "time;val\n2020-01-01 00:00:01;n/a\n2020-01-01 00:00:02;4\n"

	requests := makeRequests([]string{"val"}, 4)
	info := ReadInfo{
		Reader:    strings.NewReader(file),
		FileBlock: 4,
		FileBegin: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Settings:  settings,
	}

	if err := newTestEngine().Read(context.Background(), info, requests); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !math.IsNaN(requests[0].Values[1]) {
		t.Errorf("slot 1 value: got %v, want NaN", requests[0].Values[1])
	}
	if requests[0].Status[1] != 0 {
		t.Errorf("slot 1 status: got %d, want 0", requests[0].Status[1])
	}
	if requests[0].Values[2] != 4 || requests[0].Status[2] != statusValid {
		t.Errorf("slot 2: got value %v status %d", requests[0].Values[2], requests[0].Status[2])
	}
}

func TestReadTimestampedUnparsableTimestampFails(t *testing.T) {
	settings := &FileSourceSettings{
		Separator:    ';',
		SamplePeriod: time.Second,
		DateTimeMode: &DateTimeModeOptions{Column: 1, Pattern: "yyyy-MM-dd HH:mm:ss"},
	}
	file := "time;val\ngarbage;7\n"

	requests := makeRequests([]string{"val"}, 2)
	info := ReadInfo{
		Reader:    strings.NewReader(file),
		FileBlock: 2,
		FileBegin: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Settings:  settings,
	}

	if err := newTestEngine().Read(context.Background(), info, requests); err == nil {
		t.Fatal("expected a hard failure for an unparsable timestamp")
	}
}

func TestReadConfigurationErrors(t *testing.T) {
	tests := []struct {
		name     string
		settings FileSourceSettings
	}{
		{
			name: "datetime mode without pattern",
			settings: FileSourceSettings{
				SamplePeriod: time.Second,
				DateTimeMode: &DateTimeModeOptions{Column: 1},
			},
		},
		{
			name: "datetime mode without sample period",
			settings: FileSourceSettings{
				DateTimeMode: &DateTimeModeOptions{Column: 1, Pattern: "yyyy-MM-dd HH:mm:ss"},
			},
		},
		{
			name: "datetime mode with zero column",
			settings: FileSourceSettings{
				SamplePeriod: time.Second,
				DateTimeMode: &DateTimeModeOptions{Pattern: "yyyy-MM-dd HH:mm:ss"},
			},
		},
		{
			name:     "bad skip pattern",
			settings: FileSourceSettings{SkipColumnPattern: "("},
		},
		{
			name: "bad rewrite pattern",
			settings: FileSourceSettings{
				RewriteRules: []RewriteRule{{Pattern: "[", Replacement: "x"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ReadInfo{
				Reader:    strings.NewReader("a\n1\n"),
				FileBlock: 1,
				Settings:  &tt.settings,
			}
			requests := makeRequests([]string{"a"}, 1)
			if err := newTestEngine().Read(context.Background(), info, requests); err == nil {
				t.Fatal("expected a configuration error")
			}
		})
	}
}

func TestReadBufferTooShort(t *testing.T) {
	requests := []ReadRequest{{
		OriginalName: "a",
		Values:       make([]float64, 2),
		Status:       make([]byte, 2),
	}}
	info := ReadInfo{
		Reader:    strings.NewReader("a\n1\n2\n3\n"),
		FileBlock: 3,
		Settings:  &FileSourceSettings{},
	}

	if err := newTestEngine().Read(context.Background(), info, requests); err == nil {
		t.Fatal("expected an error for undersized buffers")
	}
}

func TestReadCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	file := "val\n1\n2\n3\n"
	requests := makeRequests([]string{"val"}, 3)
	info := ReadInfo{
		Reader:    strings.NewReader(file),
		FileBlock: 3,
		Settings:  &FileSourceSettings{},
	}

	err := newTestEngine().Read(ctx, info, requests)
	if err != context.Canceled {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	for slot, status := range requests[0].Status {
		if status != 0 {
			t.Errorf("slot %d status after cancellation: got %d, want 0", slot, status)
		}
	}
}

func TestReadWindowsLineEndings(t *testing.T) {
	file := "val\r\n1.5\r\n2.5\r\n"
	requests := makeRequests([]string{"val"}, 2)
	info := ReadInfo{
		Reader:    strings.NewReader(file),
		FileBlock: 2,
		Settings:  &FileSourceSettings{},
	}

	if err := newTestEngine().Read(context.Background(), info, requests); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requests[0].Values[0] != 1.5 || requests[0].Values[1] != 2.5 {
		t.Errorf("values: got %v, want [1.5 2.5]", requests[0].Values)
	}
}
