package tasks

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/andrescamacho/taskstream-go/internal/adapters/queue"
	"github.com/andrescamacho/taskstream-go/internal/domain/task"
	"github.com/andrescamacho/taskstream-go/internal/worker"
)

// Pi returns pi to the given number of significant digits, e.g. Pi(5) is
// "3.1416"[:6] == "3.1415" truncated, not rounded. Digits are produced by
// Gibbons' streaming spigot so memory stays proportional to the digit count.
func Pi(digits int) string {
	if digits <= 0 {
		return ""
	}

	var sb strings.Builder
	sb.Grow(digits + 1)

	q := big.NewInt(1)
	r := big.NewInt(0)
	t := big.NewInt(1)
	k := big.NewInt(1)
	n := big.NewInt(3)
	l := big.NewInt(3)

	tmp := new(big.Int)
	tmp2 := new(big.Int)

	produced := 0
	for produced < digits {
		// 4q + r - t < nt means the next digit is settled.
		tmp.Mul(q, big.NewInt(4))
		tmp.Add(tmp, r)
		tmp.Sub(tmp, t)
		tmp2.Mul(n, t)
		if tmp.Cmp(tmp2) < 0 {
			sb.WriteString(n.String())
			produced++
			if produced == 1 && digits > 1 {
				sb.WriteByte('.')
			}

			// q,r,n = 10q, 10(r-nt), (10(3q+r))/t - 10n
			nr := new(big.Int).Mul(n, t)
			nr.Sub(r, nr)
			nr.Mul(nr, big.NewInt(10))

			nn := new(big.Int).Mul(q, big.NewInt(3))
			nn.Add(nn, r)
			nn.Mul(nn, big.NewInt(10))
			nn.Div(nn, t)
			tmp.Mul(n, big.NewInt(10))
			nn.Sub(nn, tmp)

			q.Mul(q, big.NewInt(10))
			r = nr
			n = nn
		} else {
			// q,r,t,n,k,l = qk, (2q+r)l, tl, (q(7k+2)+rl)/(tl), k+1, l+2
			nr := new(big.Int).Mul(q, big.NewInt(2))
			nr.Add(nr, r)
			nr.Mul(nr, l)

			nt := new(big.Int).Mul(t, l)

			nn := new(big.Int).Mul(k, big.NewInt(7))
			nn.Add(nn, big.NewInt(2))
			nn.Mul(nn, q)
			tmp.Mul(r, l)
			nn.Add(nn, tmp)
			nn.Div(nn, nt)

			q.Mul(q, k)
			r = nr
			t = nt
			n = nn
			k.Add(k, big.NewInt(1))
			l.Add(l, big.NewInt(2))
		}
	}
	return sb.String()
}

// ComputePi returns the task function that computes pi digit by digit,
// streaming each digit as a result chunk with a status update ahead of it.
// Pacing inserts a jittered pause per digit to make the stream observable in
// demos; zero disables it.
func ComputePi(pacing time.Duration) worker.TaskFunc {
	return func(ctx context.Context, req queue.ExecutionRequest, reporter *worker.TaskReporter) error {
		payload, ok := req.Payload.(task.ComputePiPayload)
		if !ok {
			return fmt.Errorf("unexpected payload type %T for compute pi task", req.Payload)
		}

		pi := Pi(payload.Digits)
		total := len(pi)

		chunks, err := reporter.ResultChunks(1)
		if err != nil {
			return err
		}

		start := time.Now()
		for i := 0; i < total; i++ {
			if err := pause(ctx, pacing); err != nil {
				return err
			}

			done := i + 1
			pct := float64(done) / float64(total)
			elapsed := time.Since(start).Seconds()
			eta := float64(total-done) * (elapsed / float64(done))

			status := task.TaskStatus{
				State: task.StateRunning,
				Progress: task.TaskProgress{
					Current:    intPtr(done),
					Total:      intPtr(total),
					Percentage: &pct,
				},
				Metrics: map[string]interface{}{
					"eta_seconds":  eta,
					"digits_sent":  done,
					"digits_total": total,
				},
			}
			if err := reporter.ReportStatus(ctx, status); err != nil {
				return err
			}
			if err := chunks.Emit(ctx, string(pi[i])); err != nil {
				return err
			}
		}
		if err := chunks.Close(ctx); err != nil {
			return err
		}

		one := 1.0
		completed := task.TaskStatus{
			State: task.StateCompleted,
			Progress: task.TaskProgress{
				Current:    intPtr(total),
				Total:      intPtr(total),
				Percentage: &one,
			},
			Metrics: map[string]interface{}{
				"digits_sent":  total,
				"digits_total": total,
			},
		}
		if err := reporter.ReportStatus(ctx, completed); err != nil {
			return err
		}

		return reporter.ReportResult(ctx, map[string]interface{}{
			"task_id": req.TaskID,
			"data":    pi,
		})
	}
}
