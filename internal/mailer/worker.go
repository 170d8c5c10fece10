package mailer

import (
	"context"
	"encoding/json"

	"programhub/internal/metrics"
	"programhub/internal/queue"
	"programhub/internal/reporting"
)

// JobType tags email jobs on the queue.
const JobType = "email"

// Dispatcher enqueues emails. Failures are reported, never returned.
type Dispatcher struct {
	pub      queue.Publisher
	reporter *reporting.Reporter
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(pub queue.Publisher, reporter *reporting.Reporter) *Dispatcher {
	return &Dispatcher{pub: pub, reporter: reporter}
}

// Dispatch enqueues e for background delivery.
func (d *Dispatcher) Dispatch(ctx context.Context, e Email) {
	msg, err := queue.NewMessage(JobType, e)
	if err == nil {
		err = d.pub.Publish(ctx, msg)
	}
	if err != nil {
		metrics.EmailsSent.WithLabelValues("enqueue_failed").Inc()
		d.reporter.Error("email enqueue failed", err, map[string]interface{}{"to": e.To})
	}
}

// Worker consumes email jobs and hands them to a Sender.
type Worker struct {
	sender   Sender
	reporter *reporting.Reporter
}

// NewWorker creates a Worker.
func NewWorker(sender Sender, reporter *reporting.Reporter) *Worker {
	return &Worker{sender: sender, reporter: reporter}
}

// Run processes jobs until ctx ends or the queue closes.
func (w *Worker) Run(ctx context.Context, q queue.Queue) error {
	msgs, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range msgs {
		w.Handle(ctx, msg)
	}
	return nil
}

// Handle delivers one job. Other job types are ignored.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) {
	if msg.Type != JobType {
		return
	}
	var e Email
	if err := json.Unmarshal(msg.Body, &e); err != nil {
		metrics.EmailsSent.WithLabelValues("invalid").Inc()
		w.reporter.Error("decode email job", err)
		return
	}
	if err := w.sender.Send(ctx, e); err != nil {
		metrics.EmailsSent.WithLabelValues("failed").Inc()
		w.reporter.Error("email delivery failed", err, map[string]interface{}{"to": e.To})
		return
	}
	metrics.EmailsSent.WithLabelValues("sent").Inc()
}
