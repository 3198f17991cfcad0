package main

import (
	"log"

	"wnsforms/constants"

	"github.com/spf13/viper"
)

// initConfig loads config.toml (optional) on top of the built-in defaults.
// Spam keyword and blacklist data live here so deployments can extend them
// without a code change.
func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("toml")
	viper.AddConfigPath(".")

	viper.SetDefault("server.port", ":6236")
	viper.SetDefault("database.path", "wnsforms.db")

	viper.SetDefault("smtp.host", "localhost")
	viper.SetDefault("smtp.port", "587")
	viper.SetDefault("smtp.username", "")
	viper.SetDefault("smtp.password", "")
	viper.SetDefault("smtp.from_email", "no-reply@wnsforms.local")

	// empty addr means the in-memory attempt store is used
	viper.SetDefault("redis.addr", "")

	viper.SetDefault("rate_limit.max_attempts", constants.RATE_LIMIT_MAX_ATTEMPTS)
	viper.SetDefault("rate_limit.decay_seconds", constants.RATE_LIMIT_DECAY_SECONDS)

	viper.SetDefault("spam.max_urls", constants.DEFAULT_MAX_URLS)
	viper.SetDefault("spam.keywords", defaultSpamKeywords)
	viper.SetDefault("spam.blacklisted_email_domains", defaultBlacklistedEmailDomains)
	viper.SetDefault("spam.blacklisted_emails", defaultBlacklistedEmails)
	viper.SetDefault("spam.disposable_email_domains", defaultDisposableEmailDomains)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("failed to read config file: %v", err)
		}
	}
}

var defaultSpamKeywords = []string{
	"bitcoin",
	"crypto",
	"viagra",
	"cialis",
	"casino",
	"gambling",
	"lottery",
	"winner",
	"inheritance",
	"nigerian",
	"prince",
	"bank transfer",
	"wire transfer",
	"forex",
	"trading",
	"investment",
	"earn money",
	"make money fast",
	"work from home",
	"weight loss",
	"diet pills",
	"prescription",
	"pharmacy",
	"cheap",
	"free trial",
	"limited time",
	"act now",
	"click here",
	"subscribe",
	"unsubscribe",
	"congratulations",
	"you've won",
	"claim your prize",
	"verify your account",
	"confirm your details",
	"suspicious activity",
	"account suspended",
	"password expired",
	"security check",
	"instagram",
	"tiktok",
	"followers",
	"sex",
	"porn",
	"seo ",
	"backlinks",
	"whatsapp",
	"facebook",
	"twitter",
	"linkedin",
	"youtube",
	"escort",
}

var defaultBlacklistedEmailDomains = []string{
	"anonmails.de",
	"carter.com",
	"cosmicbridge.site",
}

var defaultBlacklistedEmails = []string{
	"yawiviseya67@gmail.com",
	"caceresseguelnancy@gmail.com",
	"kmetzfwadia6f4@outlook.com",
	"dinanikolskaya99@gmail.com",
}

var defaultDisposableEmailDomains = []string{
	"001310.xyz",
	"mailinator.com",
	"guerrillamail.com",
	"10minutemail.com",
	"tempmail.com",
	"sharklasers.com",
	"yopmail.com",
	"trashmail.com",
	"getnada.com",
	"dispostable.com",
}
