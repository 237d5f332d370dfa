package ledger

import "fmt"

// threshold is the minimum amount kept by Filter.
var threshold = 100

type Entry struct {
	Account string
	Amount  int
}

type Ledger struct {
	entries []Entry
	name    string
}

func NewLedger(name string) *Ledger {
	return &Ledger{name: name}
}

func (l *Ledger) Add(account string, amount int) {
	l.entries = append(l.entries, Entry{Account: account, Amount: amount})
}

func (l *Ledger) Report() string {
	kept := l.Filter()
	return fmt.Sprintf("%s: %d", l.name, Total(kept))
}

func (l *Ledger) Filter() []Entry {
	var out []Entry
	for _, e := range l.entries {
		if e.Amount >= threshold {
			out = append(out, e)
		}
	}
	return out
}

func Total(entries []Entry) int {
	sum := 0
	for _, e := range entries {
		sum += e.Amount
	}
	return sum
}
