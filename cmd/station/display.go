// Copyright 2016 by Thorsten von Eicken, see LICENSE file

package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tve/loralink/telemetry"
)

// display shows every reading on the console until the channel is closed or the context done.
func display(ctx context.Context, ch <-chan telemetry.Snapshot, log logrus.FieldLogger) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			log.Info(format(snap))
		}
	}
}

func format(snap telemetry.Snapshot) string {
	return fmt.Sprintf("#%d %s  T %.2f°C  H %.2f%%  P %.2fkPa", snap.Sequence,
		snap.At.Format("15:04:05"), snap.Temperature, snap.Humidity, snap.Pressure)
}
