package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/folioapp/folio-ingest/internal/domain"
)

func main() {
	dbPath := os.Getenv("DATA_PATH")
	if dbPath == "" {
		dbPath = os.ExpandEnv("$HOME/FolioIngest/data")
	}

	opts := badger.DefaultOptions(dbPath).
		WithReadOnly(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	fmt.Println("=== Publication Store Inspection ===")
	fmt.Println()

	journals := map[string]string{}
	err = forEach(db, "journal:", func(val []byte) error {
		var j domain.Journal
		if err := json.Unmarshal(val, &j); err != nil {
			return err
		}
		journals[j.ID] = j.Path
		fmt.Printf("Journal: %s\n", j.Path)
		fmt.Printf("  ID: %s\n", j.ID)
		fmt.Printf("  Locale: %s\n", j.DefaultLocale)
		fmt.Println()
		return nil
	})
	if err != nil {
		log.Fatalf("Error iterating journals: %v", err)
	}

	articleCount := 0
	withDOI := 0
	withoutIssue := 0
	byJournal := map[string]int{}
	shown := 0

	err = forEach(db, "article:", func(val []byte) error {
		var a domain.Article
		if err := json.Unmarshal(val, &a); err != nil {
			return err
		}
		articleCount++
		byJournal[a.JournalID]++
		if a.DOI != "" {
			withDOI++
		}
		if a.IssueID == "" {
			withoutIssue++
		}
		if shown < 5 {
			shown++
			fmt.Printf("Article: %s\n", a.Title)
			fmt.Printf("  ID: %s\n", a.ID)
			if a.DOI != "" {
				fmt.Printf("  DOI: %s\n", a.DOI)
			}
			if a.SourceID != "" {
				fmt.Printf("  Source ID: %s\n", a.SourceID)
			}
			fmt.Printf("  Stage: %s\n", a.Stage)
			fmt.Println()
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Error iterating articles: %v", err)
	}

	identityCount := 0
	err = forEach(db, "author:", func(val []byte) error {
		identityCount++
		return nil
	})
	if err != nil {
		log.Fatalf("Error iterating authors: %v", err)
	}

	frozenCount := 0
	corporateCount := 0
	err = forEach(db, "frozen:", func(val []byte) error {
		var f domain.FrozenAuthor
		if err := json.Unmarshal(val, &f); err != nil {
			return err
		}
		frozenCount++
		if f.IsCorporate {
			corporateCount++
		}
		return nil
	})
	if err != nil {
		log.Fatalf("Error iterating frozen authors: %v", err)
	}

	fmt.Println("=== Summary ===")
	fmt.Printf("Journals: %d\n", len(journals))
	fmt.Printf("Articles: %d (with DOI: %d, without issue: %d)\n", articleCount, withDOI, withoutIssue)
	for journalID, count := range byJournal {
		path := journals[journalID]
		if path == "" {
			path = journalID
		}
		fmt.Printf("  %s: %d\n", path, count)
	}
	fmt.Printf("Author identities: %d\n", identityCount)
	fmt.Printf("Frozen authors: %d (corporate: %d)\n", frozenCount, corporateCount)
}

// forEach visits every entity value under prefix, skipping index keys.
func forEach(db *badger.DB, prefix string, fn func(val []byte) error) error {
	return db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		idxPrefix := prefix + "idx:"
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			item := it.Item()
			if strings.HasPrefix(string(item.Key()), idxPrefix) {
				continue
			}
			if err := item.Value(fn); err != nil {
				log.Printf("Error reading %s: %v", item.Key(), err)
			}
		}
		return nil
	})
}
