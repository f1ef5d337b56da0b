package stats

import "testing"

func TestCollectStats(t *testing.T) {
	defer func(old bool) { CollectStats = old }(CollectStats)
	Reset()

	CollectStats = false
	IncStat(NExecution)
	if GetStat(NExecution) != 0 {
		t.Fatal("counted while collection is off")
	}

	CollectStats = true
	IncStat(NExecution)
	AddStat(NPreemption, 3)
	if GetStat(NExecution) != 1 || GetStat(NPreemption) != 3 {
		t.Fatalf("executions=%d preemptions=%d", GetStat(NExecution), GetStat(NPreemption))
	}
	for i := 0; i < int(NStatCount); i++ {
		if StatName[StatType(i)] == "" {
			t.Errorf("stat %d has no name", i)
		}
	}
}
