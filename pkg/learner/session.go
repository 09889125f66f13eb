package learner

import (
	"context"
	"fmt"
	"time"

	"github.com/sipeed/picomind/pkg/knowledge"
	"github.com/sipeed/picomind/pkg/logger"
)

// SessionReport summarizes one learning session.
type SessionReport struct {
	Cycles   int
	Topics   []string
	IDs      []string
	Evicted  int
	SaveErr  error
	Duration time.Duration
}

// RunSession runs cycles of focused learning, perCycle topics each, then
// consolidates and saves the store. Consolidation and saving also happen when
// ctx is cancelled part way; the context error is returned alongside the report.
func (l *Learner) RunSession(ctx context.Context, cycles, perCycle int) (SessionReport, error) {
	start := time.Now()
	var report SessionReport
	var runErr error

	logger.InfoCF("learner", "Starting learning session", map[string]interface{}{
		"cycles":    cycles,
		"per_cycle": perCycle,
		"offline":   l.Offline(),
	})

cycleLoop:
	for c := 0; c < cycles; c++ {
		topics := l.NextTopics(perCycle)
		if len(topics) == 0 {
			break
		}
		for _, topic := range topics {
			id, err := l.Learn(ctx, topic, knowledge.SourceFocusedLearning)
			if err != nil {
				runErr = err
				break cycleLoop
			}
			report.Topics = append(report.Topics, topic)
			report.IDs = append(report.IDs, id)
		}
		report.Cycles++
		logger.InfoCF("learner", fmt.Sprintf("Learning cycle %d/%d complete", c+1, cycles), map[string]interface{}{
			"topics": topics,
		})
	}

	report.Evicted = l.store.Consolidate()
	report.SaveErr = l.store.Save()
	report.Duration = time.Since(start)

	fields := map[string]interface{}{
		"cycles":   report.Cycles,
		"stored":   len(report.IDs),
		"evicted":  report.Evicted,
		"duration": report.Duration.String(),
	}
	if report.SaveErr != nil {
		fields["save_error"] = report.SaveErr.Error()
		logger.ErrorCF("learner", "Learning session finished but the knowledge base was not saved", fields)
	} else {
		logger.InfoCF("learner", "Learning session finished", fields)
	}
	return report, runErr
}
