package mojang

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongodbu "github.com/Ftotnem/MODERATION-SERVICE/shared/mongodb"
)

// mojangProfile represents the structure of the JSON response from Mojang's Session Server.
type mojangProfile struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// MojangService resolves usernames from Mojang's API and runs a background
// filler that backfills missing player names on punishment records. Console
// and API issuers can punish by bare UUID; the filler makes those rows
// readable for staff afterwards.
type MojangService struct {
	httpClient    *http.Client
	mojangBaseURL string

	punishmentCollection *mongo.Collection
	fillerInterval       time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewMojangService creates a new instance of MojangService.
func NewMojangService(
	mongoClient *mongodbu.Client,
	punishmentsCollectionName string,
	fillerInterval time.Duration,
) *MojangService {
	return &MojangService{
		httpClient:           &http.Client{Timeout: 5 * time.Second},
		mojangBaseURL:        "https://sessionserver.mojang.com/session/minecraft/profile",
		punishmentCollection: mongoClient.Collection(punishmentsCollectionName),
		fillerInterval:       fillerInterval,
		stopChan:             make(chan struct{}),
	}
}

// GetUsernameByUUID fetches a Minecraft username from Mojang's API using the player's UUID.
func (ms *MojangService) GetUsernameByUUID(ctx context.Context, uuid string) (string, error) {
	url := fmt.Sprintf("%s/%s", ms.mojangBaseURL, uuid)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create Mojang API request: %w", err)
	}

	resp, err := ms.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make Mojang API request for UUID %s: %w", uuid, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusNotFound {
			return "", fmt.Errorf("mojang profile not found for UUID %s (Status: %d)", uuid, resp.StatusCode)
		}
		return "", fmt.Errorf("unexpected status from Mojang API for UUID %s: %d", uuid, resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read Mojang API response body for UUID %s: %w", uuid, err)
	}

	var profile mojangProfile
	if err := json.Unmarshal(bodyBytes, &profile); err != nil {
		return "", fmt.Errorf("failed to unmarshal Mojang API response for UUID %s: %w", uuid, err)
	}

	if profile.Name == "" {
		return "", fmt.Errorf("mojang API returned empty username for UUID %s", uuid)
	}

	return profile.Name, nil
}

// StartFillerJob begins the background username filler job. Run it in a
// goroutine from main.
func (ms *MojangService) StartFillerJob() {
	ms.wg.Add(1)
	defer ms.wg.Done()

	ticker := time.NewTicker(ms.fillerInterval)
	defer ticker.Stop()

	log.Printf("MojangService: Background username filler job started, running every %v", ms.fillerInterval)

	ms.performSingleFillerIteration()

	for {
		select {
		case <-ticker.C:
			ms.performSingleFillerIteration()
		case <-ms.stopChan:
			log.Println("MojangService: Background username filler job stopping.")
			return
		}
	}
}

// StopFillerJob signals the background job to cease operations and waits for it to finish.
func (ms *MojangService) StopFillerJob() {
	log.Println("MojangService: Signaling background username filler job to stop...")
	close(ms.stopChan)
	ms.wg.Wait()
	log.Println("MojangService: Background username filler job stopped successfully.")
}

// performSingleFillerIteration finds punishment records missing a player name
// and fills them in from Mojang.
func (ms *MojangService) performSingleFillerIteration() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	filter := bson.M{"player_name": ""}
	cursor, err := ms.punishmentCollection.Find(ctx, filter)
	if err != nil {
		log.Printf("MojangService: Error during filler job - finding records: %v", err)
		return
	}
	defer cursor.Close(ctx)

	type nameless struct {
		ID         string `bson:"_id"`
		PlayerUUID string `bson:"player_uuid"`
	}
	var recordsToUpdate []nameless
	if err := cursor.All(ctx, &recordsToUpdate); err != nil {
		log.Printf("MojangService: Error decoding records with empty player names: %v", err)
		return
	}

	if len(recordsToUpdate) == 0 {
		return
	}

	log.Printf("MojangService: Found %d punishment records with empty player names to process.", len(recordsToUpdate))

	// One lookup per distinct player, not per record.
	names := make(map[string]string)
	for _, rec := range recordsToUpdate {
		select {
		case <-ctx.Done():
			log.Printf("MojangService: Filler job iteration cancelled: %v", ctx.Err())
			return
		case <-time.After(100 * time.Millisecond): // Pause between API calls to avoid rate limits
		}

		username, ok := names[rec.PlayerUUID]
		if !ok {
			var mojangErr error
			username, mojangErr = ms.GetUsernameByUUID(ctx, rec.PlayerUUID)
			if mojangErr != nil {
				log.Printf("MojangService: WARN: Filler job failed to fetch username for UUID %s: %v", rec.PlayerUUID, mojangErr)
				continue
			}
			names[rec.PlayerUUID] = username
		}

		updateFilter := bson.M{"_id": rec.ID}
		updateDoc := bson.M{"$set": bson.M{"player_name": username}}
		if _, updateErr := ms.punishmentCollection.UpdateOne(ctx, updateFilter, updateDoc, options.Update().SetUpsert(false)); updateErr != nil {
			log.Printf("MojangService: WARN: Filler job failed to update player name on record %s: %v", rec.ID, updateErr)
		} else {
			log.Printf("MojangService: INFO: Filler job set player name on record %s to %s.", rec.ID, username)
		}
	}
}
