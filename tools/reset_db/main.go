package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database struct {
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		Database string `yaml:"database"`
		Charset  string `yaml:"charset"`
	} `yaml:"database"`
}

// 子表在前
var tables = []string{"likes", "comments", "posts", "messages", "friendships", "users"}

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file")
	yes := flag.Bool("yes", false, "skip confirmation")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s (MySQL only):\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := run(loadConfig(*configPath), *yes); err != nil {
		fmt.Printf("\nDatabase reset failed: %v\n", err)
		os.Exit(1)
	}
}

// checkDriver 只支持 MySQL：TRUNCATE 与 FOREIGN_KEY_CHECKS 都是 MySQL 语法
func checkDriver(driver string) error {
	if driver != "" && driver != "mysql" {
		return fmt.Errorf("driver %q is not supported, reset_db only handles mysql", driver)
	}
	return nil
}

func buildDSN(config *Config) string {
	if config.Database.DSN != "" {
		return config.Database.DSN
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		config.Database.Username,
		config.Database.Password,
		config.Database.Host,
		config.Database.Port,
		config.Database.Database,
		config.Database.Charset,
	)
}

// run 所有 defer 都在这里执行完，main 再决定退出码
func run(config *Config, yes bool) error {
	if err := checkDriver(config.Database.Driver); err != nil {
		return err
	}

	db, err := sql.Open("mysql", buildDSN(config))
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}

	fmt.Println("Database connected successfully")
	fmt.Printf("Database: %s\n", config.Database.Database)

	if !yes {
		fmt.Printf("\nWARNING: This operation will CLEAR ALL DATA in tables %v!\n", tables)
		fmt.Print("Type 'YES' to confirm: ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "YES" {
			fmt.Println("Operation cancelled")
			return nil
		}
	}

	// FOREIGN_KEY_CHECKS 是会话级变量，固定一个连接
	ctx := context.Background()
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS=0"); err != nil {
		return fmt.Errorf("disable foreign key checks: %w", err)
	}
	defer conn.ExecContext(ctx, "SET FOREIGN_KEY_CHECKS=1")

	failed := 0
	for _, table := range tables {
		fmt.Printf("Truncating %s... ", table)
		if _, err := conn.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE `%s`", table)); err != nil {
			failed++
			fmt.Printf("Failed: %v\n", err)
		} else {
			fmt.Println("Success")
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d table(s) could not be truncated", failed)
	}
	fmt.Println("\nDatabase reset completed!")
	fmt.Println("All table data cleared, auto-increment IDs reset to 1")
	return nil
}

func loadConfig(path string) *Config {
	var cfg Config
	cfg.Database.Driver = "mysql"
	cfg.Database.Host = "localhost"
	cfg.Database.Port = 3306
	cfg.Database.Username = "peoplegrid"
	cfg.Database.Database = "peoplegrid"
	cfg.Database.Charset = "utf8mb4"

	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Println("Config file not found, using default config")
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Fatalf("Config file parsing failed: %v", err)
	}

	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		cfg.Database.Driver = driver
	}
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	return &cfg
}
