package program

import (
	"time"
)

// Program is a started program instance. IsDone never blocks and never
// consumes the zombie; GetResult reaps on first call and is idempotent
// afterwards.
type Program interface {
	Pid() int
	IsDone() (bool, error)
	GetResult() (*Result, error)
	Close() error
}

// Wait blocks until prog completes, polling with bounded backoff. The
// reactor gives a better wait for anything that also juggles timers or
// signals; this is the simple standalone path.
func Wait(prog Program) error {
	waitTime := time.Millisecond
	const waitTimeMax = 100 * time.Millisecond
	for {
		done, err := prog.IsDone()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		time.Sleep(waitTime)
		waitTime = time.Duration(float64(waitTime) * 1.01)
		if waitTime > waitTimeMax {
			waitTime = waitTimeMax
		}
	}
}
