package view

import (
	"bytes"
	"html/template"
)

// TrackingPageData provides the dynamic fields required by the capture page.
type TrackingPageData struct {
	Title    string
	Code     string
	TrackURL string
	Token    string
}

// Browser geolocation options and the pause before leaving the page.
const (
	geoTimeoutMillis    = 10000
	geoMaximumAgeMillis = 60000
	redirectDelayMillis = 2000
)

var trackingPageTmpl = template.Must(template.New("tracking_page").Parse(`
<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<meta name="robots" content="noindex" />
	<title>{{.Title}}</title>
	<style>
		:root {
			--bg: #090a0f;
			--card: rgba(255, 255, 255, 0.05);
			--border: rgba(255, 255, 255, 0.15);
			--text: #e7ecff;
			--muted: #a1acc5;
			--accent: #7dd3fc;
			--danger: #fca5a5;
			font-family: "Inter", -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif;
		}
		* { box-sizing: border-box; }
		body {
			margin: 0;
			min-height: 100vh;
			display: flex;
			align-items: center;
			justify-content: center;
			background: radial-gradient(circle at 20% 20%, #111827, #030712 60%);
			color: var(--text);
		}
		.card {
			background: var(--card);
			border: 1px solid var(--border);
			border-radius: 18px;
			padding: 32px;
			max-width: 420px;
			width: calc(100% - 32px);
			text-align: center;
		}
		.spinner {
			width: 40px;
			height: 40px;
			margin: 0 auto 20px;
			border-radius: 50%;
			border: 3px solid var(--border);
			border-top-color: var(--accent);
			animation: spin 0.9s linear infinite;
		}
		@keyframes spin { to { transform: rotate(360deg); } }
		p { color: var(--muted); }
		.error { color: var(--danger); }
		button {
			margin-top: 16px;
			padding: 0 24px;
			height: 44px;
			border-radius: 999px;
			border: 1px solid var(--border);
			background: transparent;
			color: var(--text);
			cursor: pointer;
		}
	</style>
</head>
<body>
	<div class="card">
		<div class="spinner" id="spinner"></div>
		<h1 id="headline">Preparing your link</h1>
		<p id="status">Requesting location access…</p>
		<button id="skip" type="button">Continue without location</button>
	</div>

	<script>
		(function() {
			const trackURL = {{.TrackURL}};
			const token = {{.Token}};
			const statusEl = document.getElementById("status");
			const headline = document.getElementById("headline");
			const spinner = document.getElementById("spinner");
			const skip = document.getElementById("skip");
			let sent = false;

			const setStatus = (text, failed) => {
				statusEl.textContent = text;
				statusEl.className = failed ? "error" : "";
			};

			const track = (latitude, longitude, accuracyRadius) => {
				if (sent) {
					return;
				}
				sent = true;
				skip.disabled = true;
				setStatus("Recording visit…", false);

				const body = { latitude: latitude || 0, longitude: longitude || 0 };
				if (typeof accuracyRadius === "number") {
					body.accuracyRadius = accuracyRadius;
				}
				if (token) {
					body.token = token;
				}

				fetch(trackURL, {
					method: "POST",
					headers: { "Content-Type": "application/json" },
					body: JSON.stringify(body)
				})
					.then((res) => {
						if (!res.ok) {
							throw new Error("status " + res.status);
						}
						return res.json();
					})
					.then((data) => {
						headline.textContent = "Tracking complete";
						setStatus("Redirecting you to your destination…", false);
						setTimeout(() => window.location.assign(data.redirectUrl), {{.RedirectDelay}});
					})
					.catch(() => {
						spinner.style.display = "none";
						headline.textContent = "Tracking failed";
						setStatus("Failed to track click", true);
					});
			};

			skip.addEventListener("click", () => track());

			if (!("geolocation" in navigator)) {
				track();
				return;
			}

			navigator.geolocation.getCurrentPosition(
				(pos) => track(pos.coords.latitude, pos.coords.longitude, pos.coords.accuracy),
				() => track(),
				{ enableHighAccuracy: true, timeout: {{.GeoTimeout}}, maximumAge: {{.GeoMaximumAge}} }
			);
		})();
	</script>
</body>
</html>
`))

type trackingPageModel struct {
	TrackingPageData
	GeoTimeout    int
	GeoMaximumAge int
	RedirectDelay int
}

// RenderTrackingPage expands the capture page template with the provided data.
func RenderTrackingPage(data TrackingPageData) (string, error) {
	if data.Title == "" {
		data.Title = "Redirecting..."
	}
	var buf bytes.Buffer
	err := trackingPageTmpl.Execute(&buf, trackingPageModel{
		TrackingPageData: data,
		GeoTimeout:       geoTimeoutMillis,
		GeoMaximumAge:    geoMaximumAgeMillis,
		RedirectDelay:    redirectDelayMillis,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
