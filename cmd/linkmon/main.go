package main

import (
	"encoding/hex"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/robotalks/framelink/pkg/report/mqtt"
)

var (
	mqttURL = "mqtt://localhost:1883/framelink/"
)

func init() {
	if val := os.Getenv("FRAMELINK_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}

	q.Sub("#", mqtt.Handler(func(topic string, payload []byte) {
		switch {
		case strings.HasSuffix(topic, "/"+mqtt.TopicReport):
			rec, err := mqtt.DecodeReport(payload)
			if err != nil {
				log.Printf("%s: bad report: %v", topic, err)
				return
			}
			log.Printf("%s: %s", topic, rec)
		case strings.HasSuffix(topic, "/"+mqtt.TopicSend):
			log.Printf("%s: % x", topic, payload)
		case strings.HasSuffix(topic, "/"+mqtt.TopicResult):
			log.Printf("%s: %s", topic, string(payload))
		default:
			log.Printf("%s: %s", topic, hex.EncodeToString(payload))
		}
	}))
	<-(chan struct{})(nil)
}
