// Package platform serves the static directory of trading and crypto
// platforms and records requests for platforms that are not listed.
package platform

import "github.com/ashureev/finplan/internal/domain"

// Disclaimer is shown under the directory.
const Disclaimer = "Note: These are simulated options for demonstration purposes. Our AI will execute trades on your behalf only after proper verification and authorization."

var platforms = []domain.Platform{
	{
		Name:     "Kite by Zerodha",
		LogoURL:  "https://images.sftcdn.net/images/t_app-icon-m/p/febac357-40e7-4197-becf-9a738dfc8343/3716141484/full-width-zerodha-kite-trading-platform-logo",
		LinkURL:  "https://kite.zerodha.com",
		Category: domain.CategoryTrading,
		Color:    "#387ED1",
	},
	{
		Name:     "Upstox",
		LogoURL:  "https://yt3.googleusercontent.com/dd4s5znNFk_II32JYer0dhjhqRi_rFwPcYEzLtwA9id1u4WZK2MjNt5PTyKVChxdJ8BvW4WJ=s900-c-k-c0x00ffffff-no-rj",
		LinkURL:  "https://upstox.com",
		Category: domain.CategoryTrading,
		Color:    "#FF6B6B",
	},
	{
		Name:     "Groww",
		LogoURL:  "https://yt3.googleusercontent.com/KyIoz7-0-PKrCKPkjFHv2Wv50dhuFN6ohsr9oO_8AfIXdwenMQJH8Rau1oOlMgUfI-jWq0PK3xE=s900-c-k-c0x00ffffff-no-rj",
		LinkURL:  "https://groww.in",
		Category: domain.CategoryTrading,
		Color:    "#00D09C",
	},
	{
		Name:     "Angel One",
		LogoURL:  "https://play-lh.googleusercontent.com/T5ibZuIwAGX5gnIjh7Il0wpcUtDPYL6MekYwTLvvgYUOZAaKS-_RotixDcDw0K6QDQ",
		LinkURL:  "https://angelone.in",
		Category: domain.CategoryTrading,
		Color:    "#FF8C00",
	},
	{
		Name:     "CoinDCX",
		LogoURL:  "https://zengo.com/wp-content/uploads/CoinDCX.png",
		LinkURL:  "https://coindcx.com",
		Category: domain.CategoryCrypto,
		Color:    "#2C3E50",
	},
	{
		Name:     "CoinSwitch",
		LogoURL:  "https://is1-ssl.mzstatic.com/image/thumb/Purple221/v4/11/a5/8a/11a58af7-6e7c-c5ec-5a99-4fb3d07a0def/AppIcon-0-0-1x_U007emarketing-0-7-0-85-220.png/1200x600wa.png",
		LinkURL:  "https://coinswitch.co",
		Category: domain.CategoryCrypto,
		Color:    "#6C5CE7",
	},
	{
		Name:     "Binance",
		LogoURL:  "https://public.bnbstatic.com/20190405/eb2349c3-b2f8-4a93-a286-8f86a62ea9d8.png",
		LinkURL:  "https://binance.com",
		Category: domain.CategoryCrypto,
		Color:    "#F3B63A",
	},
}

// Section is one category of the directory.
type Section struct {
	Category     domain.PlatformCategory `json:"category"`
	Title        string                  `json:"title"`
	RequestLabel string                  `json:"request_label"`
	Platforms    []domain.Platform       `json:"platforms"`
}

// Directory is the full listing shown next to the plan.
type Directory struct {
	Sections   []Section `json:"sections"`
	Disclaimer string    `json:"disclaimer"`
}

// List returns the directory. The result is a fresh copy.
func List() Directory {
	return Directory{
		Sections: []Section{
			{
				Category:     domain.CategoryTrading,
				Title:        "Trading Platforms",
				RequestLabel: "Enter your preferred trading platform name",
				Platforms:    ByCategory(domain.CategoryTrading),
			},
			{
				Category:     domain.CategoryCrypto,
				Title:        "Cryptocurrency Platforms",
				RequestLabel: "Enter your preferred cryptocurrency platform name",
				Platforms:    ByCategory(domain.CategoryCrypto),
			},
		},
		Disclaimer: Disclaimer,
	}
}

// ByCategory returns the listed platforms of one category in display order.
func ByCategory(category domain.PlatformCategory) []domain.Platform {
	var out []domain.Platform
	for _, p := range platforms {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}
