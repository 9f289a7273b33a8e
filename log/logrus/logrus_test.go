package logrus

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/unkn0wn-root/sessiontx"
)

func TestWithCarriesFields(t *testing.T) {
	base, hook := test.NewNullLogger()
	base.SetLevel(logrus.DebugLevel)
	var l sessiontx.Logger = LogrusLogger{E: logrus.NewEntry(base)}

	l.With(sessiontx.Fields{"tx": "t1"}).Info("commit settled", sessiontx.Fields{"writes": 2})
	e := hook.LastEntry()
	if e == nil || e.Level != logrus.InfoLevel || e.Data["tx"] != "t1" || e.Data["writes"] != 2 {
		t.Fatalf("entry=%+v", e)
	}

	l.Error("cluster write failed", nil)
	if e := hook.LastEntry(); e.Level != logrus.ErrorLevel || len(e.Data) != 0 {
		t.Fatalf("entry=%+v", e)
	}
}
