package main

import (
	"crypto/tls"
	"os"
	"strconv"
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/elys-network/clm/internal/access"
	"github.com/elys-network/clm/internal/bank"
	"github.com/elys-network/clm/internal/config"
	"github.com/elys-network/clm/internal/engine"
	"github.com/elys-network/clm/internal/governance"
	"github.com/elys-network/clm/internal/ledger"
	"github.com/elys-network/clm/internal/logger"
	"github.com/elys-network/clm/internal/oracle"
	"github.com/elys-network/clm/internal/pricing"
	"github.com/elys-network/clm/internal/registry"
	"github.com/elys-network/clm/internal/state"
	"github.com/elys-network/clm/internal/types"
	"github.com/elys-network/clm/internal/web"
)

// main is the entry point for the lending module service.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("CLM Lending Module Starting...")

	// Initialize Database Connection (audit trail only)
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	recorder := state.NewReceiptsStore()

	// --- 2. Price Feed and Token Bank (with Safety Switch) ---
	memBank := bank.NewMemoryBank()

	var feed oracle.PriceFeed
	var metadata oracle.MetadataSource

	clmMode := os.Getenv("CLM_MODE")
	if clmMode == "live" {
		// Initialize gRPC Connection
		grpcEndpoint := config.NodeGRPC
		var creds grpc.DialOption
		if strings.Contains(grpcEndpoint, ":443") {
			creds = grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{}))
		} else {
			creds = grpc.WithTransportCredentials(insecure.NewCredentials())
		}
		grpcClient, err := grpc.Dial(grpcEndpoint, creds)
		if err != nil {
			log.Fatal().Err(err).Msg("gRPC connection error")
		}
		defer grpcClient.Close()
		log.Info().Str("endpoint", grpcEndpoint).Msg("gRPC connected")

		elysFeed, err := oracle.NewElysFeed(grpcClient, config.OracleStaleAfter)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize oracle feed")
		}
		feed = elysFeed
		metadata = elysFeed
	} else if clmMode == "simulation" {
		log.Warn().Msg("Initializing CLM in SIMULATION mode. Prices and custody are in-memory.")
		staticFeed := oracle.NewStaticFeed(config.OracleStaleAfter)
		feed = staticFeed
		metadata = memBank
	} else {
		log.Fatal().Msg("CLM_MODE must be 'live' or 'simulation'. Halting to prevent accidental execution.")
	}

	// --- 3. Core Module Assembly with Dependency Injection ---
	accessCtl, err := access.NewController(types.Address(config.AdminAddress))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize access controller")
	}

	reg, err := registry.New(accessCtl, metadata, recorder)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize asset registry")
	}

	led := ledger.New()

	valuation, err := pricing.NewEngine(reg, feed)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize valuation engine")
	}

	fees := types.FeeParameters{
		LiquidatorIncentiveBps: config.LiquidatorIncentiveBps,
		SafetyFundBps:          config.SafetyFundBps,
	}

	eng, err := engine.New(accessCtl, reg, led, valuation, memBank, recorder,
		fees, types.Address(config.SafetyFundAddress))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize lending engine")
	}

	// --- 4. Genesis Asset Listings ---
	listings, err := config.GenesisListings()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse genesis asset listings")
	}
	for _, listing := range listings {
		if clmMode == "simulation" {
			if err := memBank.RegisterToken(listing.Denom, listing.Decimals); err != nil {
				log.Fatal().Err(err).Str("denom", listing.Denom).Msg("Failed to register simulation token")
			}
			price, ok := sdkmath.NewIntFromString(listing.PriceUsd1e18)
			if !ok {
				log.Fatal().Str("denom", listing.Denom).Str("price", listing.PriceUsd1e18).Msg("Invalid genesis price")
			}
			feed.(*oracle.StaticFeed).SetPrice(listing.Denom, price, 18)
		}
		if err := reg.ListAsset(types.Address(config.AdminAddress), listing.Denom, listing.CollateralFactorBps); err != nil {
			log.Fatal().Err(err).Str("denom", listing.Denom).Msg("Failed to list genesis asset")
		}
	}
	log.Info().Int("assets", len(listings)).Msg("Genesis assets listed")

	// --- 5. Governance Council (optional) ---
	if config.CouncilAddress != "" {
		members := make([]types.Address, 0, len(config.CouncilMembers))
		for _, m := range config.CouncilMembers {
			members = append(members, types.Address(m))
		}
		councilAddr := types.Address(config.CouncilAddress)
		if err := accessCtl.GrantRole(types.Address(config.AdminAddress), access.RoleAdmin, councilAddr); err != nil {
			log.Fatal().Err(err).Msg("Failed to grant admin role to governance council")
		}
		council, err := governance.NewCouncil(councilAddr, members, reg, eng)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize governance council")
		}
		log.Info().Str("address", string(council.Address())).Int("members", len(members)).Msg("Governance council initialized")
	}

	// --- 6. Start Web Server ---
	webPort := os.Getenv("WEB_PORT")
	if webPort == "" {
		webPort = "8080"
	}

	webServer := web.NewWebServer(webPort, eng)
	log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting CLM web API")
	if err := webServer.Start(); err != nil {
		log.Fatal().Err(err).Msg("Web server failed")
	}
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
