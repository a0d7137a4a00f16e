// Command devicesim simulates a paired device talking to the broker: it
// connects, subscribes to its own "{clientID}-topic", and publishes
// synthetic login/status events at a fixed interval. Useful as a manual
// end-to-end smoke tool and as the integration-test harness for the wire
// codec and the dispatcher's CONNECT/SUBSCRIBE/PUBLISH/PINGREQ path.
//
// Grounded on JKI757-CatLocator/go-mqtt-server's cmd/beacon-sim/main.go
// (flag-parsed, paho.mqtt.golang client, signal.NotifyContext lifecycle),
// repurposed from simulating a Bluetooth beacon to simulating a paired
// device publishing the event shape internal/devicebridge defines.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type event struct {
	ID    string `json:"id"`
	Event int    `json:"event"`
	Data  string `json:"data"`
}

const (
	eventLogin     = 1
	eventSetQrcode = 2
)

func main() {
	brokerAddr := flag.String("broker", "tcp://localhost:1883", "MQTT broker address, e.g. tcp://localhost:1883")
	clientID := flag.String("client-id", "", "device client id; random if empty")
	interval := flag.Duration("interval", 5*time.Second, "interval between published status events")
	flag.Parse()

	id := *clientID
	if id == "" {
		id = fmt.Sprintf("devicesim-%d", time.Now().UnixNano())
	}
	topic := id + "-topic"

	opts := mqtt.NewClientOptions().AddBroker(*brokerAddr).SetClientID(id)
	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("failed to connect to broker: %v", token.Error())
	}
	log.Printf("connected to MQTT broker %s as %s", *brokerAddr, id)
	defer client.Disconnect(250)

	if token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		log.Printf("received on %s: %s", msg.Topic(), msg.Payload())
	}); token.Wait() && token.Error() != nil {
		log.Fatalf("failed to subscribe to %s: %v", topic, token.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	publish(client, topic, event{ID: id, Event: eventLogin, Data: "online"})

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("shutting down")
			return
		case <-ticker.C:
			publish(client, topic, event{ID: id, Event: eventSetQrcode, Data: time.Now().Format(time.RFC3339)})
		}
	}
}

func publish(client mqtt.Client, topic string, e event) {
	body, err := json.Marshal(e)
	if err != nil {
		log.Printf("marshal event failed: %v", err)
		return
	}
	if token := client.Publish(topic, 1, false, body); token.Wait() && token.Error() != nil {
		log.Printf("publish failed: %v", token.Error())
	}
}
