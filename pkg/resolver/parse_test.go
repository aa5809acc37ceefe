package resolver

import (
	"testing"
)

func strPtr(s string) *string { return &s }

func TestParseReference(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    VariableID
		wantErr bool
	}{
		{name: "simple", input: "shared:DATABASE_URL", want: VariableID{Project: "shared", Name: "DATABASE_URL"}},
		{name: "hyphens and underscores", input: "my-project:MY_VAR-2", want: VariableID{Project: "my-project", Name: "MY_VAR-2"}},
		{name: "missing colon", input: "sharedDATABASE_URL", wantErr: true},
		{name: "empty project", input: ":VAR", wantErr: true},
		{name: "empty name", input: "proj:", wantErr: true},
		{name: "two colons", input: "a:b:c", wantErr: true},
		{name: "space in name", input: "proj:MY VAR", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseReference(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %v", tt.input, got)
				}
				rerr, ok := err.(*ResolutionError)
				if !ok {
					t.Fatalf("expected *ResolutionError, got %T", err)
				}
				if rerr.Kind != ErrMalformedReference {
					t.Errorf("expected kind %s, got %s", ErrMalformedReference, rerr.Kind)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestParseConcatenation_Quoted(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Segment
	}{
		{
			name:  "single quoted reference",
			input: `"shared:DATABASE_URL"`,
			want:  []Segment{RefSegment(VariableID{Project: "shared", Name: "DATABASE_URL"})},
		},
		{
			name:  "pipe separator preserved",
			input: `"a:X"|"a:Y"`,
			want: []Segment{
				RefSegment(VariableID{Project: "a", Name: "X"}),
				LiteralSegment("|"),
				RefSegment(VariableID{Project: "a", Name: "Y"}),
			},
		},
		{
			name:  "zero-length separator",
			input: `"a:X""a:Y"`,
			want: []Segment{
				RefSegment(VariableID{Project: "a", Name: "X"}),
				RefSegment(VariableID{Project: "a", Name: "Y"}),
			},
		},
		{
			name:  "multi-char separator",
			input: `"a:X"--sep--"b:Y"`,
			want: []Segment{
				RefSegment(VariableID{Project: "a", Name: "X"}),
				LiteralSegment("--sep--"),
				RefSegment(VariableID{Project: "b", Name: "Y"}),
			},
		},
		{
			name:  "whitespace separator",
			input: `"a:X" "a:Y"`,
			want: []Segment{
				RefSegment(VariableID{Project: "a", Name: "X"}),
				LiteralSegment(" "),
				RefSegment(VariableID{Project: "a", Name: "Y"}),
			},
		},
		{
			name:  "leading and trailing literals",
			input: `pre-"a:X"-post`,
			want: []Segment{
				LiteralSegment("pre-"),
				RefSegment(VariableID{Project: "a", Name: "X"}),
				LiteralSegment("-post"),
			},
		},
		{
			name:  "three references two separators",
			input: `"a:X"_"a:Y"-"b:Z"`,
			want: []Segment{
				RefSegment(VariableID{Project: "a", Name: "X"}),
				LiteralSegment("_"),
				RefSegment(VariableID{Project: "a", Name: "Y"}),
				LiteralSegment("-"),
				RefSegment(VariableID{Project: "b", Name: "Z"}),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConcatenation(tt.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertSegments(t, tt.want, got)
		})
	}
}

func TestParseConcatenation_Legacy(t *testing.T) {
	got, err := ParseConcatenation("shared:DATABASE_URL|api:API_VERSION")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Legacy parses produce only reference segments: the pipe is a stored
	// delimiter, never output.
	want := []Segment{
		RefSegment(VariableID{Project: "shared", Name: "DATABASE_URL"}),
		RefSegment(VariableID{Project: "api", Name: "API_VERSION"}),
	}
	assertSegments(t, want, got)
}

func TestParseConcatenation_BareReference(t *testing.T) {
	got, err := ParseConcatenation("proj:VAR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []Segment{RefSegment(VariableID{Project: "proj", Name: "VAR"})}
	assertSegments(t, want, got)
}

func TestParseConcatenation_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "unterminated quote", input: `"a:X"-"b:Y`},
		{name: "invalid quoted token", input: `"not a ref"`},
		{name: "quoted token missing colon", input: `"abc"`},
		{name: "legacy empty token", input: "a:X||a:Y"},
		{name: "legacy trailing pipe", input: "a:X|"},
		{name: "legacy bad token", input: "a:X|nope"},
		{name: "bare non-reference", input: "just a value"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConcatenation(tt.input)
			if err == nil {
				t.Fatalf("expected error for %q", tt.input)
			}
			rerr, ok := err.(*ResolutionError)
			if !ok {
				t.Fatalf("expected *ResolutionError, got %T", err)
			}
			if rerr.Kind != ErrMalformedConcatenation {
				t.Errorf("expected kind %s, got %s", ErrMalformedConcatenation, rerr.Kind)
			}
		})
	}
}

func TestParseValueKind(t *testing.T) {
	tests := []struct {
		name     string
		rec      StoredRecord
		wantKind Kind
		wantErr  ErrorKind
	}{
		{name: "raw", rec: StoredRecord{RawValue: strPtr("hello")}, wantKind: RawKind},
		{name: "empty raw is legal", rec: StoredRecord{RawValue: strPtr("")}, wantKind: RawKind},
		{name: "linked", rec: StoredRecord{LinkedTo: strPtr("shared:DB")}, wantKind: LinkedKind},
		{name: "concat", rec: StoredRecord{ConcatParts: strPtr(`"a:X"-"a:Y"`)}, wantKind: ConcatenatedKind},
		{name: "none set", rec: StoredRecord{}, wantErr: ErrAmbiguousValueKind},
		{name: "two set", rec: StoredRecord{RawValue: strPtr("x"), LinkedTo: strPtr("a:B")}, wantErr: ErrAmbiguousValueKind},
		{name: "all set", rec: StoredRecord{RawValue: strPtr("x"), LinkedTo: strPtr("a:B"), ConcatParts: strPtr("a:B|a:C")}, wantErr: ErrAmbiguousValueKind},
		{name: "bad link", rec: StoredRecord{LinkedTo: strPtr("no colon here")}, wantErr: ErrMalformedReference},
		{name: "bad concat", rec: StoredRecord{ConcatParts: strPtr(`"a:X`)}, wantErr: ErrMalformedConcatenation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValueKind(tt.rec)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				rerr := err.(*ResolutionError)
				if rerr.Kind != tt.wantErr {
					t.Errorf("expected kind %s, got %s", tt.wantErr, rerr.Kind)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Kind != tt.wantKind {
				t.Errorf("expected kind %s, got %s", tt.wantKind, got.Kind)
			}
		})
	}
}

func assertSegments(t *testing.T, want, got []Segment) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d segments, got %d: %+v", len(want), len(got), got)
	}
	for i := range want {
		if want[i].Literal != got[i].Literal {
			t.Errorf("segment %d: expected literal %q, got %q", i, want[i].Literal, got[i].Literal)
		}
		switch {
		case want[i].Ref == nil && got[i].Ref != nil:
			t.Errorf("segment %d: expected literal, got ref %v", i, *got[i].Ref)
		case want[i].Ref != nil && got[i].Ref == nil:
			t.Errorf("segment %d: expected ref %v, got literal", i, *want[i].Ref)
		case want[i].Ref != nil && got[i].Ref != nil && *want[i].Ref != *got[i].Ref:
			t.Errorf("segment %d: expected ref %v, got %v", i, *want[i].Ref, *got[i].Ref)
		}
	}
}
