package validate

import "testing"

func TestUUID(t *testing.T) {
	if err := UUID("user_id", "00000000-0000-0000-0000-000000000001"); err != nil {
		t.Fatalf("valid uuid rejected: %v", err)
	}
	if err := UUID("user_id", "not-a-uuid"); err == nil {
		t.Fatalf("invalid uuid accepted")
	}
}

func TestQuestionID(t *testing.T) {
	for _, ok := range []string{"Q001", "Q180", "Q999"} {
		if err := QuestionID(ok); err != nil {
			t.Fatalf("%s rejected: %v", ok, err)
		}
	}
	for _, bad := range []string{"q001", "Q1", "Q0001", "X001", "Q01a"} {
		if err := QuestionID(bad); err == nil {
			t.Fatalf("%s accepted", bad)
		}
	}
}

func TestResponseValue(t *testing.T) {
	for v := 1; v <= 5; v++ {
		if err := ResponseValue(v); err != nil {
			t.Fatalf("%d rejected", v)
		}
	}
	for _, v := range []int{0, 6, -1, 100} {
		if err := ResponseValue(v); err == nil {
			t.Fatalf("%d accepted", v)
		}
	}
}

func TestSanitizeText(t *testing.T) {
	if got := SanitizeText("  <b>hello</b> <script>x</script> "); got != "hello x" {
		t.Fatalf("got %q", got)
	}
	if got := SanitizeText("plain"); got != "plain" {
		t.Fatalf("got %q", got)
	}
}

func TestEmail(t *testing.T) {
	for _, ok := range []string{"user@example.org", "a.b+c@sub.domain.io"} {
		if err := Email(ok); err != nil {
			t.Fatalf("%s rejected: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "plain", "user@", "@host.com", "user@host", "Display Name <user@host.com>"} {
		if err := Email(bad); err == nil {
			t.Fatalf("%s accepted", bad)
		}
	}
}

func TestPassword(t *testing.T) {
	if err := Password("short"); err == nil {
		t.Fatalf("short password accepted")
	}
	if err := Password("longenough"); err != nil {
		t.Fatalf("valid password rejected: %v", err)
	}
}

func TestNormalizeIdentifier(t *testing.T) {
	if got := NormalizeIdentifier("  User@Example.ORG  "); got != "user@example.org" {
		t.Fatalf("got %q", got)
	}
	if got := NormalizeIdentifier("<i>User</i>@host.com"); got != "user@host.com" {
		t.Fatalf("got %q", got)
	}
}

func TestQuizType(t *testing.T) {
	for _, ok := range []string{"", "quick", "full180", "full"} {
		if err := QuizType(ok); err != nil {
			t.Fatalf("%q rejected", ok)
		}
	}
	if err := QuizType("weird"); err == nil {
		t.Fatalf("unknown quiz type accepted")
	}
}
