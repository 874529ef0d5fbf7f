package tree

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strconv"

	bolt "go.etcd.io/bbolt"
)

// Transaction helpers. Each Store operation groups its writes into a single
// bolt Update closure; these helpers are only ever called with that closure's
// tx, so a failure anywhere rolls back every write of the operation.

func getCseTx(tx *bolt.Tx, name string) (*Cse, error) {
	data := tx.Bucket(bucketCses).Get([]byte(name))
	if data == nil {
		return nil, ErrNotFound
	}
	var cse Cse
	if err := json.Unmarshal(data, &cse); err != nil {
		return nil, fmt.Errorf("failed to decode cse %s: %w", name, err)
	}
	return &cse, nil
}

func putCseTx(tx *bolt.Tx, cse *Cse) error {
	data, err := json.Marshal(cse)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketCses).Put([]byte(cse.Name), data)
}

func getResourceTx(tx *bolt.Tx, id string) (*Resource, error) {
	data := tx.Bucket(bucketResources).Get([]byte(id))
	if data == nil {
		return nil, ErrNotFound
	}
	var res Resource
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to decode resource %s: %w", id, err)
	}
	return &res, nil
}

func putResourceTx(tx *bolt.Tx, res *Resource) error {
	data, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketResources).Put([]byte(res.ID), data)
}

func deleteResourceTx(tx *bolt.Tx, id string) error {
	return tx.Bucket(bucketResources).Delete([]byte(id))
}

// generateResourceIDTx picks a random 9-digit id and re-queries until no
// collision remains. Random rather than sequential so ids are not
// enumerable from outside.
func generateResourceIDTx(tx *bolt.Tx) string {
	b := tx.Bucket(bucketResources)
	for {
		id := strconv.Itoa(100000000 + rand.IntN(900000000))
		if b.Get([]byte(id)) == nil {
			return id
		}
	}
}
