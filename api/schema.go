package api

// ManifestSchema is the JSON schema every manifest file must satisfy.
const ManifestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "description": "Schema for update agent manifest",
  "type": "object",
  "required": ["repositories", "installRecords", "uninstallRecords"],
  "properties": {
    "repositories": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["repoUri", "targets"],
        "properties": {
          "repoUri": {"type": "string", "minLength": 1},
          "targets": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["serviceAccount", "namespace", "secretName"],
              "properties": {
                "serviceAccount": {"type": "string", "minLength": 1},
                "namespace": {"type": "string", "minLength": 1},
                "secretName": {"type": "string", "minLength": 1}
              }
            }
          }
        }
      }
    },
    "uninstallRecords": {
      "type": "array",
      "items": {"type": "string", "minLength": 1}
    },
    "installRecords": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["releaseName", "installOptions"],
        "properties": {
          "releaseName": {"type": "string", "minLength": 1},
          "installOptions": {
            "type": "object",
            "required": ["chartName", "setOptions"],
            "properties": {
              "chartName": {"type": "string", "minLength": 1},
              "namespace": {"type": "string", "minLength": 1},
              "setOptions": {
                "type": "array",
                "items": {
                  "type": "object",
                  "required": ["key", "value"],
                  "properties": {
                    "key": {"type": "string", "minLength": 1},
                    "value": {"type": "string", "minLength": 1}
                  }
                }
              }
            }
          }
        }
      }
    },
    "chartRepositories": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "url"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "url": {"type": "string", "format": "uri"}
        }
      }
    }
  }
}`

// CredentialsSchema is the JSON schema of a credential provider response.
const CredentialsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "description": "Schema for a docker credentials object",
  "type": "object",
  "required": ["server", "username", "password", "email"],
  "properties": {
    "server": {"type": "string", "minLength": 1},
    "username": {"type": "string", "minLength": 1},
    "password": {"type": "string", "minLength": 1},
    "email": {"type": "string", "format": "email"}
  }
}`
