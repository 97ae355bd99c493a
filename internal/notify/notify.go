// Package notify fans alerts out to several hosts.
package notify

import "algo-dashboard/internal/interfaces"

type fanout []interfaces.Alerter

// Fanout returns an Alerter that forwards each alert to every non-nil
// alerter in order.
func Fanout(alerters ...interfaces.Alerter) interfaces.Alerter {
	out := make(fanout, 0, len(alerters))
	for _, a := range alerters {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}

func (f fanout) Alert(message string) {
	for _, a := range f {
		a.Alert(message)
	}
}
