package main

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/nais/spdocs/pkg/metrics"
	"github.com/nais/spdocs/pkg/sharepoint"
)

// Config contains the server's listen addresses and optional TLS material.
type Config struct {
	BindAddress    string
	MetricsAddress string
	CertFile       string
	KeyFile        string
}

func DefaultConfig() *Config {
	return &Config{
		BindAddress:    ":8080",
		MetricsAddress: ":8175",
	}
}

func (c *Config) addFlags() {
	flag.StringVar(&c.BindAddress, "bind-address", c.BindAddress, "Listen address for the HTTP endpoints.")
	flag.StringVar(&c.MetricsAddress, "metrics-address", c.MetricsAddress, "Listen address for metrics and health checks.")
	flag.StringVar(&c.CertFile, "cert", c.CertFile, "File containing the x509 certificate for HTTPS. Serves plain HTTP when unset.")
	flag.StringVar(&c.KeyFile, "key", c.KeyFile, "File containing the x509 private key.")
}

func httpGet(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "World"
	}

	logrus.Infof("Processing GET request. Name: %s", name)

	fmt.Fprintf(w, "Hello, %s!", name)
}

func httpPost(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid JSON in request body", http.StatusBadRequest)
		return
	}

	name, nameOK := body["name"].(string)
	age, ageOK := body["age"].(float64)
	if !nameOK || name == "" || !ageOK || age == 0 || age != math.Trunc(age) {
		http.Error(w, "Please provide both 'name' and 'age' in the request body.", http.StatusBadRequest)
		return
	}

	logrus.Infof("Processing POST request. Name: %s", name)

	fmt.Fprintf(w, "Hello, %s! You are %d years old!", name, int(age))
}

type documentList struct {
	Documents []sharepoint.Document `json:"documents"`
}

func listSharepointDocs(w http.ResponseWriter, r *http.Request) {
	logrus.Info("SharePoint documents listing triggered")

	cfg, err := sharepoint.ConfigFromEnv()
	if err != nil {
		logrus.Error(err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	provider := sharepoint.NewClientCredentialsProvider(cfg.TenantID)
	client, err := sharepoint.New(cfg, provider)
	if err != nil {
		logrus.Error(err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	documents, err := client.ListAllDocuments(r.Context())
	if err != nil {
		metrics.ListingFailures.Inc()
		errorMessage := fmt.Sprintf("An error occurred: %s", err)
		logrus.Error(errorMessage)
		http.Error(w, errorMessage, http.StatusInternalServerError)
		return
	}

	metrics.DocumentsListed.Add(float64(len(documents)))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(documentList{Documents: documents}); err != nil {
		logrus.Error(err)
	}
}

func configTLS(config Config) (*tls.Config, error) {
	sCert, err := tls.LoadX509KeyPair(config.CertFile, config.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("while loading certificate and key file: %s", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{sCert},
	}, nil
}

func run() error {
	config := DefaultConfig()
	config.addFlags()
	flag.Parse()

	go metrics.Serve(
		config.MetricsAddress,
		"/metrics",
		"/isready",
		"/isalive",
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/httpget", httpGet)
	mux.HandleFunc("/httppost", httpPost)
	mux.HandleFunc("/sharepoint", listSharepointDocs)
	mux.HandleFunc("/sharepoint_docs_list", listSharepointDocs)

	server := &http.Server{
		Addr:    config.BindAddress,
		Handler: mux,
	}

	if config.CertFile != "" && config.KeyFile != "" {
		tlsConfig, err := configTLS(*config)
		if err != nil {
			return err
		}
		server.TLSConfig = tlsConfig
		logrus.Infof("Serving HTTPS on %s", config.BindAddress)
		return server.ListenAndServeTLS("", "")
	}

	logrus.Infof("Serving HTTP on %s", config.BindAddress)
	return server.ListenAndServe()
}

func main() {
	err := run()
	if err != nil {
		logrus.Errorf("Fatal error: %s", err)
		os.Exit(1)
	}
}
