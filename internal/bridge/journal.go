package bridge

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/dgraph-io/badger/v3"
)

// Journal — журнал незавершённых мутаций в BadgerDB. Убитый клиент
// при следующем запуске дочитывает журнал и повторяет команды,
// которые не успели дойти до сервера.
type Journal struct {
	db  *badger.DB
	seq *badger.Sequence
}

// OpenJournal открывает журнал в подкаталоге dataPath.
func OpenJournal(dataPath string) (*Journal, error) {
	opts := badger.DefaultOptions(filepath.Join(dataPath, "pending"))
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	seq, err := db.GetSequence([]byte("journal:seq"), 64)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать sequence: %w", err)
	}

	return &Journal{db: db, seq: seq}, nil
}

// Close закрывает журнал.
func (j *Journal) Close() error {
	if err := j.seq.Release(); err != nil {
		j.db.Close()
		return err
	}
	return j.db.Close()
}

func commandKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("cmd:%020d", seq))
}

// Append записывает команду в журнал, присваивая ей порядковый номер.
func (j *Journal) Append(cmd *Command) error {
	seq, err := j.seq.Next()
	if err != nil {
		return fmt.Errorf("ошибка sequence: %w", err)
	}
	cmd.Seq = seq

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("ошибка сериализации команды: %w", err)
	}

	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(commandKey(seq), data)
	})
}

// Remove удаляет исполненную (или окончательно проваленную) команду.
func (j *Journal) Remove(cmd Command) error {
	return j.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(commandKey(cmd.Seq))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// Pending возвращает незавершённые команды в порядке постановки.
func (j *Journal) Pending() ([]Command, error) {
	var cmds []Command

	err := j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("cmd:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var cmd Command
				if err := json.Unmarshal(val, &cmd); err != nil {
					return fmt.Errorf("ошибка десериализации команды: %w", err)
				}
				cmds = append(cmds, cmd)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(cmds, func(i, k int) bool { return cmds[i].Seq < cmds[k].Seq })
	return cmds, nil
}
