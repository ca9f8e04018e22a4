// Package observability holds the process-wide Prometheus collectors.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MessagesTotal counts handled webhook messages by outcome status.
var MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "zivai_messages_total",
	Help: "Inbound webhook messages handled, labelled by outcome status.",
}, []string{"status"})

// PaymentPollsTotal counts finished settlement polls by outcome.
var PaymentPollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "zivai_payment_polls_total",
	Help: "Settlement poll tasks finished, labelled by outcome.",
}, []string{"outcome"})
