package xlog

import (
	"net"

	"go.uber.org/zap"
)

// FieldTimestamp ECS时间字段
const FieldTimestamp = "@timestamp"

func Remote(addr net.Addr) zap.Field {
	if addr == nil {
		return zap.Skip()
	}
	return zap.String("remote", addr.String())
}

func ClientID(id uint32) zap.Field {
	return zap.Uint32("client_id", id)
}

func Seq(seq uint32) zap.Field {
	return zap.Uint32("seq", seq)
}
