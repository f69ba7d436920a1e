package config

import "testing"

func TestParseOperatorSet(t *testing.T) {
	tests := []struct {
		name         string
		raw          string
		wantLen      int
		operators    [][2]string // (subject, email) pairs expected to match
		nonOperators [][2]string
	}{
		{
			name:    "empty list matches nobody",
			raw:     "",
			wantLen: 0,
			nonOperators: [][2]string{
				{"user_123", "admin@example.com"},
				{"", ""},
			},
		},
		{
			name:    "comma separated emails",
			raw:     "admin@example.com,ops@example.com",
			wantLen: 2,
			operators: [][2]string{
				{"", "admin@example.com"},
				{"user_999", "ops@example.com"},
			},
			nonOperators: [][2]string{
				{"", "intruder@example.com"},
				{"admin@example.com", ""}, // email entries never match as subjects
			},
		},
		{
			name:    "emails match case insensitively",
			raw:     "Admin@Example.COM",
			wantLen: 1,
			operators: [][2]string{
				{"", "admin@example.com"},
				{"", "ADMIN@EXAMPLE.COM"},
			},
		},
		{
			name:    "semicolon separated with whitespace",
			raw:     " admin@example.com ; user_2abc ",
			wantLen: 2,
			operators: [][2]string{
				{"", "admin@example.com"},
				{"user_2abc", ""},
			},
			nonOperators: [][2]string{
				{"user_2ABC", ""}, // subject ids match exactly
			},
		},
		{
			name:    "bare subject ids",
			raw:     "user_2abc,user_2def",
			wantLen: 2,
			operators: [][2]string{
				{"user_2abc", ""},
				{"user_2def", "someone@example.com"},
			},
			nonOperators: [][2]string{
				{"user_2xyz", ""},
			},
		},
		{
			name:    "blank entries are skipped",
			raw:     ",, ;admin@example.com; ,",
			wantLen: 1,
			operators: [][2]string{
				{"", "admin@example.com"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := ParseOperatorSet(tt.raw)
			if got := set.Len(); got != tt.wantLen {
				t.Fatalf("expected %d entries, got %d", tt.wantLen, got)
			}
			for _, pair := range tt.operators {
				if !set.IsOperator(pair[0], pair[1]) {
					t.Fatalf("expected (subject=%q, email=%q) to be an operator", pair[0], pair[1])
				}
			}
			for _, pair := range tt.nonOperators {
				if set.IsOperator(pair[0], pair[1]) {
					t.Fatalf("expected (subject=%q, email=%q) to not be an operator", pair[0], pair[1])
				}
			}
		})
	}
}

func TestIsOperatorTrimsInput(t *testing.T) {
	set := ParseOperatorSet("admin@example.com,user_2abc")

	if !set.IsOperator("", "  Admin@example.com  ") {
		t.Fatal("expected surrounding whitespace in the email to be ignored")
	}
	if !set.IsOperator("  user_2abc  ", "") {
		t.Fatal("expected surrounding whitespace in the subject to be ignored")
	}
}
