package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger"
	cm "github.com/mosaicnetworks/blocksim/src/common"
)

const (
	reportPrefix  = "report"
	summaryPrefix = "summary"
)

// BadgerStore implements the Store interface on a badger database. Badger
// transactions make it safe for the concurrent runs of a sweep.
type BadgerStore struct {
	db   *badger.DB
	path string
}

// NewBadgerStore opens, or creates, the database at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.SyncWrites = false
	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	store := &BadgerStore{
		db:   handle,
		path: path,
	}
	return store, nil
}

//==============================================================================
//Keys

func reportKey(run string, node int) []byte {
	return []byte(fmt.Sprintf("%s_%s_%09d", reportPrefix, run, node))
}

func reportRunPrefix(run string) []byte {
	return []byte(fmt.Sprintf("%s_%s_", reportPrefix, run))
}

func summaryKey(run string) []byte {
	return []byte(fmt.Sprintf("%s_%s", summaryPrefix, run))
}

//==============================================================================
//Implement the Store interface

// SetNodeReport implements the Store interface.
func (s *BadgerStore) SetNodeReport(run string, r *NodeReport) error {
	val, err := r.Marshal()
	if err != nil {
		return err
	}
	return s.set(reportKey(run, r.Node), val)
}

// GetNodeReport implements the Store interface.
func (s *BadgerStore) GetNodeReport(run string, node int) (*NodeReport, error) {
	key := reportKey(run, node)
	val, err := s.get(key)
	if err != nil {
		return nil, mapError(err, "NodeReport", string(key))
	}
	r := new(NodeReport)
	if err := r.Unmarshal(val); err != nil {
		return nil, err
	}
	return r, nil
}

// NodeReports implements the Store interface.
func (s *BadgerStore) NodeReports(run string) ([]*NodeReport, error) {
	res := []*NodeReport{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := reportRunPrefix(run)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			r := new(NodeReport)
			if err := r.Unmarshal(val); err != nil {
				return err
			}
			res = append(res, r)
		}
		return nil
	})
	return res, err
}

// SetSummary implements the Store interface.
func (s *BadgerStore) SetSummary(summary *Summary) error {
	val, err := summary.Marshal()
	if err != nil {
		return err
	}
	return s.set(summaryKey(summary.Name), val)
}

// GetSummary implements the Store interface.
func (s *BadgerStore) GetSummary(run string) (*Summary, error) {
	key := summaryKey(run)
	val, err := s.get(key)
	if err != nil {
		return nil, mapError(err, "Summary", run)
	}
	summary := new(Summary)
	if err := summary.Unmarshal(val); err != nil {
		return nil, err
	}
	return summary, nil
}

// Runs implements the Store interface.
func (s *BadgerStore) Runs() ([]string, error) {
	res := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(summaryPrefix + "_")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			res = append(res, strings.TrimPrefix(key, string(prefix)))
		}
		return nil
	})
	sort.Strings(res)
	return res, err
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// StorePath implements the Store interface.
func (s *BadgerStore) StorePath() string {
	return s.path
}

//==============================================================================
//DB Methods

func (s *BadgerStore) set(key, val []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
}

func (s *BadgerStore) get(key []byte) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	return val, err
}

func isDBKeyNotFound(err error) bool {
	return err == badger.ErrKeyNotFound
}

func mapError(err error, name, key string) error {
	if err != nil {
		if isDBKeyNotFound(err) {
			return cm.NewSimErr(name, cm.KeyNotFound, key)
		}
	}
	return err
}
