package contract

import "time"

type EventListener interface {
	OnCall(contract, method string, took time.Duration, err error)
	OnTransact(contract, method string, took time.Duration, err error)
}

type SelectiveListener struct {
	OnCallCb     func(contract, method string, took time.Duration, err error)
	OnTransactCb func(contract, method string, took time.Duration, err error)
}

func (l *SelectiveListener) OnCall(contract, method string, took time.Duration, err error) {
	if l.OnCallCb != nil {
		l.OnCallCb(contract, method, took, err)
	}
}

func (l *SelectiveListener) OnTransact(contract, method string, took time.Duration, err error) {
	if l.OnTransactCb != nil {
		l.OnTransactCb(contract, method, took, err)
	}
}
