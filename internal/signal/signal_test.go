package signal

import "testing"

func TestActionValid(t *testing.T) {
	cases := map[Action]bool{Buy: true, Sell: true, Hold: false, "": false, "buy": false}
	for action, want := range cases {
		if got := action.Valid(); got != want {
			t.Fatalf("Valid(%q) = %v, want %v", action, got, want)
		}
	}
}
