// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/tve/loralink/telemetry"
)

// mq is a handle onto a MQTT broker connection.
type mq struct {
	conn  mqtt.Client // broker connection
	topic string      // topic readings are published to
	log   logrus.FieldLogger
}

// newMQ connects to a broker and returns a new mq object. The connection is persistent, i.e.,
// re-establishes itself if there is a disconnect.
func newMQ(host, prefix string, log logrus.FieldLogger) (*mq, error) {
	hostname, _ := os.Hostname()
	id := "loralink-" + hostname
	log = log.WithField("broker", host)
	log.Debugf("Configuring MQTT with client id %s", id)
	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s", host)).
		SetClientID(id).
		SetAutoReconnect(true).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.WithError(err).Warn("MQTT connection lost")
		})

	mqConn := mqtt.NewClient(opts)
	token := mqConn.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("timeout connecting to %s", host)
	}
	if err := token.Error(); err != nil {
		return nil, err
	}
	log.Info("MQTT connected")
	return &mq{conn: mqConn, topic: prefix + "/telemetry", log: log}, nil
}

// publishAll publishes every snapshot as JSON until the channel is closed or the context done.
func (mq *mq) publishAll(ctx context.Context, ch <-chan telemetry.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			mq.Publish(snap)
		}
	}
}

// Publish publishes one snapshot. Failures are logged, the next snapshot is not far off.
func (mq *mq) Publish(snap telemetry.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		mq.log.WithError(err).Warn("cannot encode snapshot")
		return
	}
	token := mq.conn.Publish(mq.topic, 1, false, payload)
	go func() {
		if token.WaitTimeout(5*time.Second) && token.Error() != nil {
			mq.log.WithError(token.Error()).Warn("MQTT publish failed")
		}
	}()
}

// Close disconnects from the broker, waiting briefly for pending publications.
func (mq *mq) Close() {
	mq.conn.Disconnect(250)
}
