package xpeer

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Measurement is one accepted DelayResult as published on the feed.
type Measurement struct {
	ClientID uint32    `json:"client_id"`
	Name     string    `json:"name"`
	Seq      uint32    `json:"seq"`
	DelayNs  uint64    `json:"delay_ns"`
	At       time.Time `json:"at"`
}

func (m Measurement) Delay() time.Duration {
	return time.Duration(m.DelayNs)
}

func (m Measurement) Marshal() []byte {
	data, err := json.Marshal(m)
	if err != nil {
		// 字段均为基础类型
		panic(err)
	}
	return data
}

func ParseMeasurement(data []byte) (Measurement, error) {
	var m Measurement
	if err := json.Unmarshal(data, &m); err != nil {
		return m, errors.Wrap(err, "parse measurement")
	}
	return m, nil
}
