package redis

import (
	"fmt"

	"github.com/mcoot/boulder/internal/model"
)

// Key prefix for all boulder data
const keyPrefix = "boulder"

// playerKey returns the Redis key for a Player
func playerKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:player:%s", keyPrefix, id)
}

// pushesKey returns the Redis HASH of play date -> PushEvent for a player
func pushesKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:pushes:%s", keyPrefix, id)
}

// deathsKey returns the Redis HASH of interval anchor -> DeathEvent for a player
func deathsKey(id model.PlayerID) string {
	return fmt.Sprintf("%s:deaths:%s", keyPrefix, id)
}

// deathSeqKey returns the counter used to assign DeathEvent IDs
func deathSeqKey() string {
	return fmt.Sprintf("%s:seq:death", keyPrefix)
}

// playersIndexKey returns the Redis SET of all player IDs
func playersIndexKey() string {
	return fmt.Sprintf("%s:idx:players", keyPrefix)
}
