package batch

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/ptsites/pkg/medal"
	"github.com/jmylchreest/ptsites/pkg/opencheck"
)

func (o Outcome) label() string {
	if o.Name != "" && o.Name != o.Site {
		return fmt.Sprintf("%s (%s)", o.Name, o.Site)
	}
	return o.Site
}

// Summary describes the sign-in result in one line.
func (o SignInOutcome) Summary() []string {
	mark := "✗"
	if o.Success {
		mark = "✓"
	}
	return []string{fmt.Sprintf("%s %s: %s", mark, o.label(), o.Message)}
}

// Summary counts the medals of the site and lists the purchasable ones.
func (o MedalOutcome) Summary() []string {
	if o.Error != "" {
		return []string{fmt.Sprintf("✗ %s: %s", o.label(), o.Error)}
	}
	buy := medal.Purchasable(o.Medals)
	owned := 0
	for _, m := range o.Medals {
		if m.Owned() {
			owned++
		}
	}
	lines := []string{fmt.Sprintf("%s: %d medals, %d purchasable, %d owned", o.label(), len(o.Medals), len(buy), owned)}
	for _, m := range buy {
		lines = append(lines, "  "+describeMedal(m))
	}
	return lines
}

func describeMedal(m medal.Record) string {
	parts := []string{m.Name, humanize.Comma(int64(m.Price))}
	if m.BonusRate != "" {
		parts = append(parts, "加成 "+m.BonusRate)
	}
	if m.Validity != "" {
		parts = append(parts, m.Validity)
	}
	if m.Stock != "" {
		parts = append(parts, "库存 "+m.Stock)
	}
	if m.SaleEndTime != "" {
		parts = append(parts, "截止 "+m.SaleEndTime)
	}
	return strings.Join(parts, " | ")
}

// Summary describes the registration state in one line.
func (o CheckOutcome) Summary() []string {
	line := fmt.Sprintf("[%s] %s: %s", o.Status, o.label(), o.Message)
	if o.Carried {
		line += " (previous result)"
	}
	if o.Status == opencheck.StatusOpen && o.SignupURL != "" {
		line += " " + o.SignupURL
	}
	return []string{line}
}
