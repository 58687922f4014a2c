package batch

import (
	"testing"

	"github.com/jmylchreest/ptsites/pkg/medal"
	"github.com/jmylchreest/ptsites/pkg/opencheck"
	"github.com/jmylchreest/ptsites/pkg/signin"
)

func TestSummaries(t *testing.T) {
	base := Outcome{Site: "zmpt", Name: "织梦"}

	got := SignInOutcome{Outcome: base, Result: signin.Result{Success: true, Message: signin.MsgSucceeded}}.Summary()
	if len(got) != 1 || got[0] != "✓ 织梦 (zmpt): "+signin.MsgSucceeded {
		t.Errorf("sign-in summary = %q", got)
	}

	m := MedalOutcome{Outcome: Outcome{Site: "zmpt", Name: "zmpt"}, Medals: []medal.Record{
		{Name: "夏日", Price: 150000, BonusRate: "150%", Validity: "30天", PurchaseStatus: medal.StatusBuy},
		{Name: "冬日", Price: 1, PurchaseStatus: medal.StatusOwned},
	}}.Summary()
	if len(m) != 2 || m[0] != "zmpt: 2 medals, 1 purchasable, 1 owned" || m[1] != "  夏日 | 150,000 | 加成 150% | 30天" {
		t.Errorf("medal summary = %q", m)
	}

	failed := MedalOutcome{Outcome: base, Error: "site down"}.Summary()
	if len(failed) != 1 || failed[0] != "✗ 织梦 (zmpt): site down" {
		t.Errorf("failed medal summary = %q", failed)
	}

	c := CheckOutcome{Outcome: base, Result: opencheck.Result{
		Status: opencheck.StatusOpen, Message: "检测到开放注册", SignupURL: "https://zmpt.cc/signup.php",
	}}.Summary()
	if len(c) != 1 || c[0] != "[open] 织梦 (zmpt): 检测到开放注册 https://zmpt.cc/signup.php" {
		t.Errorf("check summary = %q", c)
	}

	carried := CheckOutcome{Outcome: base, Carried: true, Result: opencheck.Result{Status: opencheck.StatusError, Message: "检查失败: timeout"}}.Summary()
	if carried[0] != "[error] 织梦 (zmpt): 检查失败: timeout (previous result)" {
		t.Errorf("carried summary = %q", carried)
	}
}
