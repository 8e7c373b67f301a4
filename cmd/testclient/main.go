package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Checks the service's gRPC health endpoint for each registered service.
func main() {
	serverAddr := flag.String("server", "localhost:50051", "gRPC server address")
	flag.Parse()

	conn, err := grpc.NewClient(*serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	client := grpc_health_v1.NewHealthClient(conn)

	healthy := true
	for _, service := range []string{"", "heart.sound.Session", "heart.sound.AnalysisBackend"} {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()

		name := service
		if name == "" {
			name = "(server)"
		}
		if err != nil {
			log.Printf("%s: %v", name, err)
			healthy = false
			continue
		}
		log.Printf("%s: %s", name, resp.GetStatus())
		if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
			healthy = false
		}
	}

	if !healthy {
		os.Exit(1)
	}
}
