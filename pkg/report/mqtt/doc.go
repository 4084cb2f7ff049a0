// Package mqtt publishes link reports to an MQTT broker and lets remote
// tools enqueue frames on a link.
//
// Topics are relative to the prefix taken from the broker URL path,
// e.g. mqtt://host:1883/lab/ publishes reports of link "host" on
// "lab/host/report" and accepts frames on "lab/host/send".
package mqtt
