// Script liệt kê natural key trùng trong một collection master (bản nào thắng do first-wins quyết định).
// Chạy: go run scripts/check_duplicate_keys.go -collection MachineMasterDatabase -key codigo
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func loadEnv() {
	tryPaths := []string{".env", "config/env/development.env"}
	cwd, _ := os.Getwd()
	for _, p := range tryPaths {
		full := filepath.Join(cwd, p)
		if _, err := os.Stat(full); err == nil {
			_ = godotenv.Load(full)
			break
		}
		parent := filepath.Dir(cwd)
		if _, err := os.Stat(filepath.Join(parent, p)); err == nil {
			_ = godotenv.Load(filepath.Join(parent, p))
			break
		}
	}
}

func main() {
	collection := flag.String("collection", "MachineMasterDatabase", "Collection master cần kiểm tra")
	key := flag.String("key", "codigo", "Field natural key")
	flag.Parse()

	loadEnv()
	uri := os.Getenv("MONGODB_CONNECTION_URI")
	dbName := os.Getenv("MONGODB_DBNAME_DATA")
	if uri == "" || dbName == "" {
		log.Fatal("Cần MONGODB_CONNECTION_URI và MONGODB_DBNAME_DATA")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		log.Fatalf("Kết nối lỗi: %v", err)
	}
	defer client.Disconnect(ctx)

	// Gom theo key đã trim, giữ thứ tự created_date để thấy bản thắng (đầu tiên)
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{*key: bson.M{"$nin": bson.A{nil, ""}}}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_date", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"$toLower": bson.M{"$trim": bson.M{"input": bson.M{"$toString": "$" + *key}}}},
			"ids":   bson.M{"$push": "$_id"},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$match", Value: bson.M{"count": bson.M{"$gt": 1}}}},
		{{Key: "$sort", Value: bson.M{"_id": 1}}},
	}

	cursor, err := client.Database(dbName).Collection(*collection).Aggregate(ctx, pipeline)
	if err != nil {
		log.Fatalf("Aggregate lỗi: %v", err)
	}
	var groups []bson.M
	if err := cursor.All(ctx, &groups); err != nil {
		log.Fatalf("Đọc kết quả lỗi: %v", err)
	}

	fmt.Printf("=== %s.%s: %d key trùng ===\n", *collection, *key, len(groups))
	for _, g := range groups {
		ids, _ := g["ids"].(bson.A)
		fmt.Printf("\n--- key %v (%v bản) ---\n", g["_id"], g["count"])
		for i, id := range ids {
			marker := "  shadowed"
			if i == 0 {
				marker = "  winner  "
			}
			fmt.Printf("%s %v\n", marker, id)
		}
	}
}
