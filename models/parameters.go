package models

import "time"

// PARAMETERS is the full run configuration. Section and field names mirror the
// JSON config file so a file written by hand maps one-to-one.
type PARAMETERS struct {
	SERIAL  *SERIAL  `json:"SERIAL" mapstructure:"serial"`
	OUTPUT  *OUTPUT  `json:"OUTPUT" mapstructure:"output"`
	SESSION *SESSION `json:"SESSION" mapstructure:"session"`
	MONITOR *MONITOR `json:"MONITOR" mapstructure:"monitor"`
	DEBUG   bool     `json:"DEBUG" mapstructure:"debug"`
}

type SERIAL struct {
	PORT        string        `json:"PORT" mapstructure:"port"`
	BAUDRATE    int           `json:"BAUDRATE" mapstructure:"baudrate"`
	READTIMEOUT time.Duration `json:"READTIMEOUT" mapstructure:"readtimeout"`
	RETRIES     int           `json:"RETRIES" mapstructure:"retries"`
	RETRYDELAY  time.Duration `json:"RETRYDELAY" mapstructure:"retrydelay"`
	// FLUSH discards input buffered since the previous sample before each read.
	FLUSH bool `json:"FLUSH" mapstructure:"flush"`
}

type OUTPUT struct {
	DIR    string `json:"DIR" mapstructure:"dir"`
	PREFIX string `json:"PREFIX" mapstructure:"prefix"`
}

type SESSION struct {
	STEPS        int           `json:"STEPS" mapstructure:"steps"`
	MEASUREMENTS int           `json:"MEASUREMENTS" mapstructure:"measurements"`
	INTERVAL     time.Duration `json:"INTERVAL" mapstructure:"interval"`
}

// MONITOR configures the optional HTTP/WebSocket mirror. An empty ADDR disables it.
type MONITOR struct {
	ADDR string `json:"ADDR" mapstructure:"addr"`
}
