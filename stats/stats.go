package stats

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

type StatType int

const (
	// Exploration counters.
	NExecution StatType = iota
	NScheduleBranch
	NReadBranch
	NPreemption
	NDistinctTrace
	NFailure

	// Native stress counters.
	NStressRun

	// Must be the last.
	NStatCount
)

var StatName map[StatType]string = map[StatType]string{
	NExecution:      "Executions",
	NScheduleBranch: "Schedule Choices",
	NReadBranch:     "Read-from Choices",
	NPreemption:     "Preemptions",
	NDistinctTrace:  "Distinct Traces",
	NFailure:        "Failed Executions",
	NStressRun:      "Native Stress Runs",
}

var (
	mu    sync.Mutex
	count = make(map[StatType]int)
)

var CollectStats = false

func IncStat(whichStat StatType) {
	AddStat(whichStat, 1)
}

func AddStat(whichStat StatType, n int) {
	if !CollectStats {
		return
	}
	mu.Lock()
	count[whichStat] += n
	mu.Unlock()
}

func GetStat(whichStat StatType) int {
	mu.Lock()
	defer mu.Unlock()
	return count[whichStat]
}

func Reset() {
	mu.Lock()
	count = make(map[StatType]int)
	mu.Unlock()
}

func ShowStats() {
	log.Info("------ STATS ------")
	for i := 0; i < int(NStatCount); i++ {
		stat := StatType(i)
		log.Infof("  %-28s:%10d", StatName[stat], GetStat(stat))
	}
	log.Info("-------------------")
}
