package session

import "testing"

func TestPromptPattern(t *testing.T) {
	matching := []string{
		"core-sw1#",
		"core-sw1>",
		"user@host$",
		"core-sw1(config)#",
		"core-sw1(config-if)#",
		"<HUAWEI>",
		"[edge-rtr1]#",
		"sw.lab.example#",
	}
	for _, p := range matching {
		if !promptRe.MatchString(p) {
			t.Errorf("promptRe should match %q", p)
		}
	}

	nonMatching := []string{
		"",
		"% Invalid input detected at '^' marker.",
		"Building configuration...",
		"some output line",
		"#",
	}
	for _, p := range nonMatching {
		if promptRe.MatchString(p) {
			t.Errorf("promptRe should not match %q", p)
		}
	}
}

func TestHostnameFromPrompt(t *testing.T) {
	cases := []struct {
		prompt string
		want   string
	}{
		{"core-sw1#", "core-sw1"},
		{"core-sw1>", "core-sw1"},
		{"core-sw1(config)#", "core-sw1"},
		{"core-sw1(config-if)#", "core-sw1"},
		{"<HUAWEI>", "HUAWEI"},
		{"[edge-rtr1]", "edge-rtr1"},
		{"admin@fw1$", "fw1"},
		{"  sw2#  ", "sw2"},
	}
	for _, c := range cases {
		if got := HostnameFromPrompt(c.prompt); got != c.want {
			t.Errorf("HostnameFromPrompt(%q) = %q, want %q", c.prompt, got, c.want)
		}
	}
}

func TestLastNonBlankLine(t *testing.T) {
	if got := lastNonBlankLine("a\nb\n\n  \n"); got != "b" {
		t.Errorf("lastNonBlankLine = %q, want %q", got, "b")
	}
	if got := lastNonBlankLine("\n \n"); got != "" {
		t.Errorf("lastNonBlankLine on blanks = %q, want empty", got)
	}
}
