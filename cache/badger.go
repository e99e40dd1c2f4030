package cache

import (
	"github.com/dgraph-io/badger"

	"github.com/omniscale/aixmdiff/log"
)

// badgerLogger routes the log output of badger into our leveled logger.
// Info messages of badger are only logged at debug level.
type badgerLogger struct {
	l *log.Logger
}

func newBadgerLogger() badgerLogger {
	return badgerLogger{l: log.New("badger")}
}

func (b badgerLogger) Errorf(format string, v ...interface{})   { b.l.Errorf(format, v...) }
func (b badgerLogger) Warningf(format string, v ...interface{}) { b.l.Warnf(format, v...) }
func (b badgerLogger) Infof(format string, v ...interface{})    { b.l.Debugf(format, v...) }
func (b badgerLogger) Debugf(format string, v ...interface{})   { b.l.Debugf(format, v...) }

// writeBatch writes multiple keys with as few transactions as possible.
// A transaction is committed and a new one is started when the current
// transaction becomes too large.
type writeBatch struct {
	db  *badger.DB
	txn *badger.Txn
}

func newWriteBatch(db *badger.DB) *writeBatch {
	return &writeBatch{db: db, txn: db.NewTransaction(true)}
}

func (b *writeBatch) Set(key, value []byte) error {
	err := b.txn.Set(key, value)
	if err == badger.ErrTxnTooBig {
		if err := b.next(); err != nil {
			return err
		}
		return b.txn.Set(key, value)
	}
	return err
}

func (b *writeBatch) Delete(key []byte) error {
	err := b.txn.Delete(key)
	if err == badger.ErrTxnTooBig {
		if err := b.next(); err != nil {
			return err
		}
		return b.txn.Delete(key)
	}
	return err
}

func (b *writeBatch) next() error {
	if err := b.txn.Commit(); err != nil {
		return err
	}
	b.txn = b.db.NewTransaction(true)
	return nil
}

func (b *writeBatch) Commit() error {
	return b.txn.Commit()
}

func (b *writeBatch) Discard() {
	b.txn.Discard()
}
