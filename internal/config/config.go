package config // package config loads application configuration from environment variables

import (
    "errors"   // errors builds validation failures
    "fmt"      // fmt formats validation messages
    "log"      // log is used to report configuration errors and halt execution
    "os"       // os provides access to environment variables
    "strconv"  // strconv converts strings to other types
    "strings"  // strings normalizes the environment name
    "time"     // time expresses token and code lifetimes

    "github.com/joho/godotenv" // godotenv loads a local .env file into the environment
)

// MinJWTSecretBytes is the shortest HMAC secret the token service accepts.
const MinJWTSecretBytes = 32

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Secrets live only here, never in client code.
type Config struct {
    Env              string        // application environment (e.g. "development", "production")
    Port             string        // HTTP port to listen on
    LogLevel         string        // zap level: debug, info, warn, error
    DBUser           string        // database username
    DBPass           string        // database password (optional)
    DBHost           string        // database host address
    DBPort           string        // database port number
    DBName           string        // database name
    JWTSecret        string        // HMAC secret used to sign access tokens
    JWTIssuer        string        // iss claim written and required on access tokens
    JWTAudience      string        // aud claim written and required on access tokens
    AccessTTL        time.Duration // access token lifetime
    RefreshTTL       time.Duration // refresh token lifetime
    BcryptCost       int           // bcrypt cost for password hashing
    OTPTTL           time.Duration // one-time passcode lifetime
    OTPBypassEnabled bool          // accept OTPBypassCode; refused in production
    OTPBypassCode    string        // fixed code for non-production environments
    InvitationTTL    time.Duration // lifetime of an invitation token
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.
func Load() Config {
    return Config{
        Env:              must("APP_ENV"),
        Port:             must("APP_PORT"),
        LogLevel:         envStr("LOG_LEVEL", "info"),
        DBUser:           must("DB_USER"),
        DBPass:           os.Getenv("DB_PASS"),
        DBHost:           must("DB_HOST"),
        DBPort:           must("DB_PORT"),
        DBName:           must("DB_NAME"),
        JWTSecret:        must("JWT_SECRET"),
        JWTIssuer:        envStr("JWT_ISSUER", "relief-api"),
        JWTAudience:      envStr("JWT_AUDIENCE", "relief-admin"),
        AccessTTL:        time.Duration(envInt("ACCESS_TOKEN_TTL_MIN", 30)) * time.Minute,
        RefreshTTL:       time.Duration(envInt("REFRESH_TOKEN_TTL_DAYS", 7)) * 24 * time.Hour,
        BcryptCost:       mustInt("BCRYPT_COST"),
        OTPTTL:           envDur("OTP_TTL", 5*time.Minute),
        OTPBypassEnabled: envBool("OTP_BYPASS_ENABLED", false),
        OTPBypassCode:    os.Getenv("OTP_BYPASS_CODE"),
        InvitationTTL:    envDur("INVITATION_TTL", 72*time.Hour),
    }
}

// LoadDatabase reads only what the offline commands (seed, sweep) need:
// the environment, logging, database and bcrypt settings.
func LoadDatabase() Config {
    return Config{
        Env:        envStr("APP_ENV", "development"),
        LogLevel:   envStr("LOG_LEVEL", "info"),
        DBUser:     must("DB_USER"),
        DBPass:     os.Getenv("DB_PASS"),
        DBHost:     must("DB_HOST"),
        DBPort:     must("DB_PORT"),
        DBName:     must("DB_NAME"),
        BcryptCost: envInt("BCRYPT_COST", 12),
    }
}

// Production reports whether the process runs with production settings.
func (c Config) Production() bool {
    switch strings.ToLower(c.Env) {
    case "prod", "production":
        return true
    }
    return false
}

// Validate rejects settings that would weaken authentication.
func (c Config) Validate() error {
    var errs []error
    if len(c.JWTSecret) < MinJWTSecretBytes {
        errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", MinJWTSecretBytes))
    }
    if c.OTPBypassEnabled && c.Production() {
        errs = append(errs, errors.New("OTP_BYPASS_ENABLED is not allowed in production"))
    }
    if c.OTPBypassEnabled && len(c.OTPBypassCode) != 6 {
        errs = append(errs, errors.New("OTP_BYPASS_CODE must be six digits"))
    }
    if c.AccessTTL <= 0 || c.RefreshTTL <= 0 || c.OTPTTL <= 0 || c.InvitationTTL <= 0 {
        errs = append(errs, errors.New("token, otp and invitation lifetimes must be positive"))
    }
    return errors.Join(errs...)
}

// LoadDotEnv loads .env from the working directory when present.  Values
// already set in the environment win.
func LoadDotEnv() {
    if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
        log.Printf("config: ignoring .env: %v", err)
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}
