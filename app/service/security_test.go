package service

import "testing"

func TestLooksLikeSQLInjection(t *testing.T) {
	cases := map[string]bool{
		"Jane":                         false,
		"12 Main Street, Apt 4":        false,
		"jane@example.com":             false,
		"select":                       true,
		"Robert'); DROP TABLE users":   true,
		"hello -- world":               true,
		"apt #4":                       true,
		"x' or 1=1":                    true,
		"{select}":                     false,
		"prefix {UPDATE the template}": false,
		"delete } trailing":            false,
	}
	for input, want := range cases {
		if got := looksLikeSQLInjection(input); got != want {
			t.Fatalf("looksLikeSQLInjection(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestSuspiciousFieldsMessages(t *testing.T) {
	messages := suspiciousFields(map[string]string{
		"billing_last_name":  "DROP",
		"billing_first_name": "Jane",
		"billing_city":       "/* x */",
	})
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %v", messages)
	}
	if messages[0] != `Please enter a valid "Billing city".` || messages[1] != `Please enter a valid "Billing last name".` {
		t.Fatalf("unexpected messages: %v", messages)
	}
}
